// Package classify sends a complaint photo to a hosted vision model and maps
// the structured answer onto the complaint data model. The service boundary
// is one POST per invocation; anything that goes wrong routes the caller to
// a fixed fallback classification so the report flow never dead-ends.
package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/civiceye/civiceye-backend/pkg/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-3-flash-preview"

	instruction = "Analyze this photo of a civic issue. Identify the type of problem, " +
		"describe it for a maintenance worker, and rate its severity from 1 to 5 " +
		"(1 being minor, 5 being critical/dangerous)."
)

// Result is the structured judgment for one image.
type Result struct {
	IssueType   models.IssueType `json:"issueType"`
	Description string           `json:"description"`
	Severity    int              `json:"severity"`
	Tags        []string         `json:"tags"`
}

// Fallback is the classification substituted whenever the real one cannot be
// obtained. Callers continue the workflow with it instead of aborting.
func Fallback() Result {
	return Result{
		IssueType:   models.IssueOther,
		Description: "No description provided",
		Severity:    3,
		Tags:        []string{},
	}
}

// Client talks to a Gemini-style generateContent endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New builds a client against an explicit endpoint; used by tests.
func New(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewFromEnv builds a client from GEMINI_API_KEY (and optional overrides
// GEMINI_BASE_URL / GEMINI_MODEL).
func NewFromEnv() *Client {
	base := os.Getenv("GEMINI_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	return New(base, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"))
}

/* ============================ Wire types ================================ */

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	InlineData *inlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// responseSchema mirrors the structured-output contract: issueType,
// description and severity are required, tags are optional.
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"issueType": map[string]any{
			"type":        "STRING",
			"description": "The category: pothole, garbage, water leak, streetlight, drainage, or other",
		},
		"description": map[string]any{
			"type":        "STRING",
			"description": "A concise description of the problem detected",
		},
		"severity": map[string]any{
			"type":        "NUMBER",
			"description": "Severity score from 1 to 5",
		},
		"tags": map[string]any{
			"type":        "ARRAY",
			"items":       map[string]any{"type": "STRING"},
			"description": "Relevant keywords like 'hazardous', 'obstruction', etc.",
		},
	},
	"required": []string{"issueType", "description", "severity"},
}

/* ============================ Classification ============================ */

// Classify performs exactly one round trip for the given JPEG image bytes.
// Any transport failure, non-2xx status, missing text payload, or response
// lacking a required field is returned as an error; callers substitute
// Fallback() and carry on.
func (c *Client) Classify(ctx context.Context, image []byte) (Result, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: instruction},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return Result{}, fmt.Errorf("classify error: %s | %s", res.Status, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode model response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("no response from model")
	}
	text := out.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return Result{}, fmt.Errorf("no response from model")
	}

	return parseResult([]byte(text))
}

// parseResult enforces the schema contract before the answer is trusted:
// every required field must be present, severity is clamped to 1..5 and an
// out-of-enum category degrades to "other".
func parseResult(raw []byte) (Result, error) {
	var payload struct {
		IssueType   *string  `json:"issueType"`
		Description *string  `json:"description"`
		Severity    *float64 `json:"severity"`
		Tags        []string `json:"tags"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, fmt.Errorf("decode classification: %w", err)
	}
	if payload.IssueType == nil || payload.Description == nil || payload.Severity == nil {
		return Result{}, fmt.Errorf("classification missing required fields")
	}

	severity := int(*payload.Severity)
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}

	issueType := models.IssueType(*payload.IssueType)
	if !issueType.Valid() {
		issueType = models.IssueOther
	}

	tags := payload.Tags
	if tags == nil {
		tags = []string{}
	}

	return Result{
		IssueType:   issueType,
		Description: *payload.Description,
		Severity:    severity,
		Tags:        tags,
	}, nil
}
