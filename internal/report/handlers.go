package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/civiceye/civiceye-backend/internal/auth"
	"github.com/civiceye/civiceye-backend/internal/complaints"
	"github.com/civiceye/civiceye-backend/internal/messaging"
	"github.com/civiceye/civiceye-backend/internal/storage"
	"github.com/civiceye/civiceye-backend/pkg/models"
	"github.com/civiceye/civiceye-backend/pkg/validation"
)

type ConfirmRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
	// Optional manual category, overriding the classifier's answer.
	IssueType string `json:"issue_type" validate:"omitempty,issuetype"`
}

type Handler struct {
	mgr       *Manager
	repo      *complaints.Repository
	photos    *storage.Supabase
	publisher *messaging.Publisher
	log       *zap.Logger
}

func NewHandler(mgr *Manager, repo *complaints.Repository, photos *storage.Supabase, publisher *messaging.Publisher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{mgr: mgr, repo: repo, photos: photos, publisher: publisher, log: log}
}

// wizardFor resolves the session's wizard or answers 404. Wizards are
// private to the citizen who started them.
func (h *Handler) wizardFor(c *fiber.Ctx) (*Wizard, error) {
	w, ok := h.mgr.Get(c.Params("id"))
	if !ok || w.UserID() != auth.MustUserID(c) {
		return nil, fiber.ErrNotFound
	}
	return w, nil
}

// @Summary      Start a report
// @Description  Opens a new report wizard in the capturing step
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  View
// @Router       /reports [post]
func (h *Handler) Start(c *fiber.Ctx) error {
	w := h.mgr.Start(auth.CurrentUser(c))
	return c.Status(fiber.StatusCreated).JSON(w.View())
}

// @Summary      Attach the issue photo
// @Description  Uploads the photo and starts classification and (when
// @Description  coordinates are sent) a best-effort address lookup
// @Tags         reports
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id         path     string true  "report id"
// @Param        photo      formData file   true  "JPEG/PNG photo"
// @Param        latitude   formData number false "device latitude"
// @Param        longitude  formData number false "device longitude"
// @Success      202  {object}  View
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /reports/{id}/photo [post]
func (h *Handler) AttachPhoto(c *fiber.Ctx) error {
	w, err := h.wizardFor(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "photo is required (use key: photo)")
	}
	if fh.Size <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty file")
	}
	if fh.Size > 10*1024*1024 {
		return fiber.NewError(fiber.StatusBadRequest, "max 10MB per photo")
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	switch ct {
	case "image/jpeg", "image/png":
		// ok
	default:
		return fiber.NewError(fiber.StatusBadRequest, "only JPEG or PNG are allowed")
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	// Both coordinates or neither; a lone value is treated as permission
	// denied rather than a half-filled location.
	var lat, lng *float64
	if vLat, errLat := strconv.ParseFloat(c.FormValue("latitude"), 64); errLat == nil {
		if vLng, errLng := strconv.ParseFloat(c.FormValue("longitude"), 64); errLng == nil {
			lat, lng = &vLat, &vLng
		}
	}

	imageURL, imageKey := h.storePhoto(w.ID, fh.Filename, ct, image)

	if err := w.AttachPhoto(image, imageURL, imageKey, lat, lng); err != nil {
		if errors.Is(err, ErrBadTransition) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusAccepted).JSON(w.View())
}

// storePhoto uploads to the object store when configured and otherwise
// inlines the image as a data URI, as the original app did.
func (h *Handler) storePhoto(reportID, filename, contentType string, image []byte) (url, key string) {
	if h.photos.Configured() {
		key = h.photos.MakeObjectKey(reportID, filename)
		if err := h.photos.Upload(key, bytes.NewReader(image), contentType); err == nil {
			return h.photos.PublicURL(key), key
		}
		h.log.Warn("photo upload failed, inlining image", zap.String("report", reportID))
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image)), ""
}

// @Summary      Report state
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "report id"
// @Success      200  {object}  View
// @Failure      404  {object}  models.ErrorResponse
// @Router       /reports/{id} [get]
func (h *Handler) GetState(c *fiber.Ctx) error {
	w, err := h.wizardFor(c)
	if err != nil {
		return err
	}
	return c.JSON(w.View())
}

// @Summary      Back to capturing
// @Description  Discards the classification and returns to the photo step
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "report id"
// @Success      200  {object}  View
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /reports/{id}/back [post]
func (h *Handler) Back(c *fiber.Ctx) error {
	w, err := h.wizardFor(c)
	if err != nil {
		return err
	}
	if err := w.Back(); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.JSON(w.View())
}

// @Summary      Confirm and submit
// @Description  Builds the complaint from the reviewed report and files it
// @Tags         reports
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string          true  "report id"
// @Param        payload  body ConfirmRequest  false "optional comment"
// @Success      201  {object}  models.Complaint
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /reports/{id}/confirm [post]
func (h *Handler) Confirm(c *fiber.Ctx) error {
	w, err := h.wizardFor(c)
	if err != nil {
		return err
	}

	var in ConfirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	complaint, err := w.Confirm(in.Comment, models.IssueType(in.IssueType))
	if err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	if err := h.repo.Append(c.Context(), complaint); err != nil {
		// The wizard is already terminal; a duplicate id here means the
		// generator collided, which KSUIDs make vanishingly unlikely.
		if errors.Is(err, complaints.ErrDuplicateID) {
			return fiber.ErrConflict
		}
		return fiber.ErrInternalServerError
	}
	h.mgr.Remove(w.ID)

	if err := h.publisher.PublishComplaintCreated(messaging.ComplaintCreatedMessage{
		ComplaintID:   complaint.ID,
		IssueType:     string(complaint.IssueType),
		SeverityScore: complaint.SeverityScore,
		ReporterID:    complaint.UserID,
		ReporterName:  complaint.UserName,
		Timestamp:     time.Now().Unix(),
	}); err != nil {
		h.log.Warn("created event publish failed", zap.Error(err))
	}

	return c.Status(fiber.StatusCreated).JSON(complaint)
}

// @Summary      Abandon a report
// @Description  Cancels in-flight analysis; a late result is never applied
// @Tags         reports
// @Security     BearerAuth
// @Param        id  path string true "report id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /reports/{id} [delete]
func (h *Handler) Abandon(c *fiber.Ctx) error {
	if _, err := h.wizardFor(c); err != nil {
		return err
	}
	imageKey, _ := h.mgr.Abandon(c.Params("id"))
	if imageKey != "" && h.photos.Configured() {
		if err := h.photos.Delete(imageKey); err != nil {
			h.log.Warn("orphan photo delete failed", zap.String("key", imageKey), zap.Error(err))
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}
