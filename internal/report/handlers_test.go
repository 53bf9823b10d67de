package report

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/civiceye/civiceye-backend/internal/complaints"
	"github.com/civiceye/civiceye-backend/internal/snapshot"
	"github.com/civiceye/civiceye-backend/internal/storage"
	"github.com/civiceye/civiceye-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func injectAuth(user models.UserProfile) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", user.UID)
		c.Locals("role", string(user.Role))
		c.Locals("user", user)
		return c.Next()
	}
}

type testEnv struct {
	app  *fiber.App
	repo *complaints.Repository
	mgr  *Manager
}

func newReportApp(t *testing.T, cl Classifier, geo Geocoder, user models.UserProfile) testEnv {
	t.Helper()
	repo := complaints.NewRepository(snapshot.NewMemoryStore(), nil)
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	mgr := NewManager(cl, geo, nil)
	h := NewHandler(mgr, repo, storage.NewSupabase(), nil, nil)

	app := fiber.New()
	app.Use(injectAuth(user))
	app.Post("/api/reports", h.Start)
	app.Get("/api/reports/:id", h.GetState)
	app.Post("/api/reports/:id/photo", h.AttachPhoto)
	app.Post("/api/reports/:id/back", h.Back)
	app.Post("/api/reports/:id/confirm", h.Confirm)
	app.Delete("/api/reports/:id", h.Abandon)
	return testEnv{app: app, repo: repo, mgr: mgr}
}

// buildPhotoBody builds a multipart body with one image part and optional
// coordinate form values.
func buildPhotoBody(t *testing.T, contentType string, withCoords bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="issue.jpg"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("fake-jpeg-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if withCoords {
		_ = mw.WriteField("latitude", "-6.2")
		_ = mw.WriteField("longitude", "106.81")
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func startReport(t *testing.T, env testEnv) string {
	t.Helper()
	resp, _ := env.app.Test(httptest.NewRequest("POST", "/api/reports", nil))
	if resp.StatusCode != 201 {
		t.Fatalf("start status %d", resp.StatusCode)
	}
	var v View
	_ = json.NewDecoder(resp.Body).Decode(&v)
	if v.State != StateCapturing {
		t.Fatalf("start state %s", v.State)
	}
	return v.ID
}

func getView(t *testing.T, env testEnv, id string) View {
	t.Helper()
	resp, _ := env.app.Test(httptest.NewRequest("GET", "/api/reports/"+id, nil))
	if resp.StatusCode != 200 {
		t.Fatalf("get state %d", resp.StatusCode)
	}
	var v View
	_ = json.NewDecoder(resp.Body).Decode(&v)
	return v
}

func waitReviewing(t *testing.T, env testEnv, id string) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := getView(t, env, id); v.State == StateReviewing {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("report never reached reviewing")
	return View{}
}

/* ============================================================================
   Tests
   ============================================================================ */

// The whole wizard over HTTP: start, photo, review, confirm, and the filed
// complaint lands at the front of the collection.
func Test_ReportFlow_EndToEnd(t *testing.T) {
	cl := &stubClassifier{res: potholeResult()}
	geo := &stubGeocoder{addr: "12 Main St, Springfield"}
	env := newReportApp(t, cl, geo, testUser())

	id := startReport(t, env)

	body, ctype := buildPhotoBody(t, "image/jpeg", true)
	req := httptest.NewRequest("POST", "/api/reports/"+id+"/photo", body)
	req.Header.Set("Content-Type", ctype)
	resp, _ := env.app.Test(req)
	if resp.StatusCode != 202 {
		t.Fatalf("photo status %d", resp.StatusCode)
	}

	v := waitReviewing(t, env, id)
	if v.Analysis == nil || v.Analysis.IssueType != models.IssuePothole {
		t.Fatalf("analysis missing: %+v", v.Analysis)
	}
	// No object store configured, so the photo is inlined.
	if !strings.HasPrefix(v.ImageURL, "data:image/jpeg;base64,") {
		t.Fatalf("image url %q", v.ImageURL)
	}

	req = httptest.NewRequest("POST", "/api/reports/"+id+"/confirm",
		strings.NewReader(`{"comment":"It swallowed my bike wheel"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = env.app.Test(req)
	if resp.StatusCode != 201 {
		t.Fatalf("confirm status %d", resp.StatusCode)
	}
	var c models.Complaint
	_ = json.NewDecoder(resp.Body).Decode(&c)
	if c.ManualDescription != "It swallowed my bike wheel" || c.Status != models.StatusSubmitted {
		t.Fatalf("complaint wrong: %+v", c)
	}

	all := env.repo.All()
	if len(all) != 1 || all[0].ID != c.ID {
		t.Fatalf("complaint not filed: %+v", all)
	}

	// The wizard is gone once confirmed.
	resp, _ = env.app.Test(httptest.NewRequest("GET", "/api/reports/"+id, nil))
	if resp.StatusCode != 404 {
		t.Fatalf("want 404 after confirm, got %d", resp.StatusCode)
	}
}

func Test_ReportPhoto_RejectsWrongType(t *testing.T) {
	env := newReportApp(t, &stubClassifier{res: potholeResult()}, &stubGeocoder{}, testUser())
	id := startReport(t, env)

	body, ctype := buildPhotoBody(t, "application/pdf", false)
	req := httptest.NewRequest("POST", "/api/reports/"+id+"/photo", body)
	req.Header.Set("Content-Type", ctype)
	resp, _ := env.app.Test(req)
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func Test_ReportPhoto_MissingFile_Is400(t *testing.T) {
	env := newReportApp(t, &stubClassifier{res: potholeResult()}, &stubGeocoder{}, testUser())
	id := startReport(t, env)

	resp, _ := env.app.Test(httptest.NewRequest("POST", "/api/reports/"+id+"/photo", nil))
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

// Another citizen's wizard answers 404, same as a missing one.
func Test_Report_ForeignWizard_Is404(t *testing.T) {
	cl := &stubClassifier{res: potholeResult()}
	env := newReportApp(t, cl, &stubGeocoder{}, testUser())
	w := env.mgr.Start(models.UserProfile{UID: "someone-else", Role: models.RoleCitizen})

	resp, _ := env.app.Test(httptest.NewRequest("GET", "/api/reports/"+w.ID, nil))
	if resp.StatusCode != 404 {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func Test_Report_Abandon(t *testing.T) {
	env := newReportApp(t, &stubClassifier{res: potholeResult()}, &stubGeocoder{}, testUser())
	id := startReport(t, env)

	resp, _ := env.app.Test(httptest.NewRequest("DELETE", "/api/reports/"+id, nil))
	if resp.StatusCode != 204 {
		t.Fatalf("abandon status %d", resp.StatusCode)
	}
	resp, _ = env.app.Test(httptest.NewRequest("GET", "/api/reports/"+id, nil))
	if resp.StatusCode != 404 {
		t.Fatalf("want 404 after abandon, got %d", resp.StatusCode)
	}
}

func Test_ReportConfirm_ManualCategory(t *testing.T) {
	cl := &stubClassifier{res: potholeResult()}
	env := newReportApp(t, cl, &stubGeocoder{}, testUser())
	id := startReport(t, env)

	body, ctype := buildPhotoBody(t, "image/jpeg", false)
	req := httptest.NewRequest("POST", "/api/reports/"+id+"/photo", body)
	req.Header.Set("Content-Type", ctype)
	if resp, _ := env.app.Test(req); resp.StatusCode != 202 {
		t.Fatalf("photo status %d", resp.StatusCode)
	}
	waitReviewing(t, env, id)

	// A category outside the enum fails validation.
	req = httptest.NewRequest("POST", "/api/reports/"+id+"/confirm",
		strings.NewReader(`{"issue_type":"sinkhole"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := env.app.Test(req)
	if resp.StatusCode != 400 {
		t.Fatalf("want 400 for bad category, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/reports/"+id+"/confirm",
		strings.NewReader(`{"issue_type":"drainage"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = env.app.Test(req)
	if resp.StatusCode != 201 {
		t.Fatalf("confirm status %d", resp.StatusCode)
	}
	var c models.Complaint
	_ = json.NewDecoder(resp.Body).Decode(&c)
	if c.IssueType != models.IssueDrainage {
		t.Fatalf("category not overridden: %s", c.IssueType)
	}
}

func Test_Report_ConfirmBeforeReview_Is409(t *testing.T) {
	env := newReportApp(t, &stubClassifier{res: potholeResult()}, &stubGeocoder{}, testUser())
	id := startReport(t, env)

	resp, _ := env.app.Test(httptest.NewRequest("POST", "/api/reports/"+id+"/confirm", nil))
	if resp.StatusCode != 409 {
		t.Fatalf("want 409, got %d", resp.StatusCode)
	}
}
