// Package report drives the multi-step report wizard: a single-use state
// machine that takes a photo through classification to a confirmed
// complaint. States move capturing → analyzing → reviewing, with
// reviewing → capturing as the only backward edge.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/civiceye/civiceye-backend/internal/classify"
	"github.com/civiceye/civiceye-backend/internal/geocode"
	"github.com/civiceye/civiceye-backend/pkg/models"
	"github.com/civiceye/civiceye-backend/pkg/utils"
)

// State is the wizard's current step.
type State string

const (
	StateCapturing State = "capturing"
	StateAnalyzing State = "analyzing"
	StateReviewing State = "reviewing"
	StateSubmitted State = "submitted"
)

// ErrBadTransition is returned when an operation does not match the
// wizard's current state.
var ErrBadTransition = errors.New("invalid report step")

// warningAnalysisFailed annotates reviews that fell back to the default
// classification.
const warningAnalysisFailed = "AI analysis failed. Please try a clearer photo or manually select the category."

// Classifier is the slice of the classification client the wizard needs.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (classify.Result, error)
}

// Geocoder is the slice of the geocoding client the wizard needs.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Wizard is one in-progress report. It is single-use: after Confirm it is
// terminal and no state is ever re-entered.
//
// Classification and geocoding run asynchronously; a generation counter
// guards against a stale result being applied after the user went back or
// abandoned the session.
type Wizard struct {
	ID   string
	user models.UserProfile

	classifier Classifier
	geocoder   Geocoder
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	gen       int
	imageURL  string
	imageKey  string
	analysis  *classify.Result
	warning   string
	lat, lng  float64
	hasCoords bool
	address   string
}

func newWizard(user models.UserProfile, classifier Classifier, geocoder Geocoder, log *zap.Logger) *Wizard {
	ctx, cancel := context.WithCancel(context.Background())
	return &Wizard{
		ID:         ksuid.New().String(),
		user:       user,
		classifier: classifier,
		geocoder:   geocoder,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateCapturing,
	}
}

// UserID returns the reporting citizen's id.
func (w *Wizard) UserID() string { return w.user.UID }

// State returns the current step.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// AttachPhoto accepts the captured image, kicks off classification and, when
// coordinates were granted, a best-effort address lookup. Both complete in
// the background; the wizard reaches reviewing once classification settles.
func (w *Wizard) AttachPhoto(image []byte, imageURL, imageKey string, lat, lng *float64) error {
	w.mu.Lock()
	if w.state != StateCapturing {
		w.mu.Unlock()
		return fmt.Errorf("%w: expected %s, at %s", ErrBadTransition, StateCapturing, w.state)
	}
	w.gen++
	gen := w.gen
	w.state = StateAnalyzing
	w.imageURL = imageURL
	w.imageKey = imageKey
	w.warning = ""
	w.analysis = nil
	if lat != nil && lng != nil {
		w.hasCoords = true
		w.lat, w.lng = *lat, *lng
		w.address = ""
	} else {
		w.hasCoords = false
		w.lat, w.lng = 0, 0
		w.address = geocode.AddressDenied
	}
	hasCoords := w.hasCoords
	plat, plng := w.lat, w.lng
	w.mu.Unlock()

	go w.analyze(gen, image)
	if hasCoords {
		go w.resolveAddress(gen, plat, plng)
	}
	return nil
}

// analyze performs the single classification round trip and applies the
// result unless the wizard has moved on in the meantime.
func (w *Wizard) analyze(gen int, image []byte) {
	res, err := w.classifier.Classify(w.ctx, image)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.state != StateAnalyzing {
		w.log.Debug("stale classification discarded", zap.String("report", w.ID))
		return
	}
	if err != nil {
		w.log.Warn("classification failed, using fallback",
			zap.String("report", w.ID), zap.Error(err))
		res = classify.Fallback()
		w.warning = warningAnalysisFailed
	}
	w.analysis = &res
	w.state = StateReviewing
}

// resolveAddress fills in the reverse-geocoded address. It may land after
// the review step is already showing; that is fine, the address field simply
// updates. On failure the raw coordinate string is kept.
func (w *Wizard) resolveAddress(gen int, lat, lng float64) {
	addr, err := w.geocoder.ReverseGeocode(w.ctx, lat, lng)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return
	}
	if err != nil || addr == "" {
		addr = geocode.FallbackAddress(lat, lng)
	}
	w.address = addr
}

// Back returns from reviewing to capturing, discarding the classification.
// The generation bump ensures anything still in flight can never be applied.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateReviewing {
		return fmt.Errorf("%w: expected %s, at %s", ErrBadTransition, StateReviewing, w.state)
	}
	w.gen++
	w.state = StateCapturing
	w.imageURL = ""
	w.imageKey = ""
	w.analysis = nil
	w.warning = ""
	w.address = ""
	w.hasCoords = false
	w.lat, w.lng = 0, 0
	return nil
}

// Confirm finalizes the report into a new Complaint and makes the wizard
// terminal. The complaint starts in submitted with an empty update history.
// A non-empty issueType overrides the classifier's category, for reporters
// who pick one manually after a failed or wrong analysis.
func (w *Wizard) Confirm(comment string, issueType models.IssueType) (models.Complaint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateReviewing || w.analysis == nil {
		return models.Complaint{}, fmt.Errorf("%w: expected %s, at %s", ErrBadTransition, StateReviewing, w.state)
	}

	address := w.address
	if address == "" {
		if w.hasCoords {
			address = geocode.FallbackAddress(w.lat, w.lng)
		} else {
			address = geocode.AddressDenied
		}
	}

	category := w.analysis.IssueType
	if issueType != "" && issueType.Valid() {
		category = issueType
	}

	now := time.Now()
	c := models.Complaint{
		ID:                utils.NewComplaintID(),
		UserID:            w.user.UID,
		UserName:          w.user.Name,
		ImageURL:          w.imageURL,
		IssueType:         category,
		AIDescription:     w.analysis.Description,
		ManualDescription: comment,
		SeverityScore:     w.analysis.Severity,
		Latitude:          w.lat,
		Longitude:         w.lng,
		Address:           address,
		Status:            models.StatusSubmitted,
		CreatedAt:         now,
		UpdatedAt:         now,
		Updates:           []models.ComplaintUpdate{},
	}

	w.state = StateSubmitted
	w.cancel()
	return c, nil
}

// abandon cancels any in-flight work and invalidates pending results.
// Returns the storage key of an uploaded photo so it can be cleaned up.
func (w *Wizard) abandon() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.cancel()
	return w.imageKey
}

// View is the wizard state exposed to the client.
type View struct {
	ID       string           `json:"id"`
	State    State            `json:"state"`
	ImageURL string           `json:"image_url,omitempty"`
	Analysis *classify.Result `json:"analysis,omitempty"`
	Warning  string           `json:"warning,omitempty"`
	Address  string           `json:"address,omitempty"`
}

// View returns a snapshot for rendering.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		ID:       w.ID,
		State:    w.state,
		ImageURL: w.imageURL,
		Warning:  w.warning,
		Address:  w.address,
	}
	if w.analysis != nil {
		res := *w.analysis
		v.Analysis = &res
	}
	return v
}
