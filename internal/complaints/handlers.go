package complaints

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/civiceye/civiceye-backend/internal/auth"
	"github.com/civiceye/civiceye-backend/internal/messaging"
	"github.com/civiceye/civiceye-backend/pkg/models"
	"github.com/civiceye/civiceye-backend/pkg/sanitize"
	"github.com/civiceye/civiceye-backend/pkg/validation"
)

/* ============================== DTOs ==================================== */

type UpdateStatusRequest struct {
	Status        string `json:"status" validate:"required,status"`
	Message       string `json:"message" validate:"max=2000"`
	ProofImageURL string `json:"proof_image_url" validate:"omitempty,max=2048"`
}

// TriageItem is one row of the admin table: enough to triage without
// shipping full histories and inline images for every case.
type TriageItem struct {
	ID            string                 `json:"id"`
	IssueType     models.IssueType       `json:"issue_type"`
	SeverityScore int                    `json:"severity_score"`
	Status        models.ComplaintStatus `json:"status"`
	Address       string                 `json:"address"`
	Preview       string                 `json:"preview"`
	UserName      string                 `json:"user_name"`
	CreatedAt     time.Time              `json:"created_at"`
	Updates       int                    `json:"updates"`
}

type Handler struct {
	repo      *Repository
	publisher *messaging.Publisher
	log       *zap.Logger
}

func NewHandler(repo *Repository, publisher *messaging.Publisher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{repo: repo, publisher: publisher, log: log}
}

/* ============================ Citizen views ============================= */

// @Summary      List my complaints
// @Description  Citizen lists their own reports, most recent first
// @Tags         complaints
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.Complaint
// @Failure      401  {object}  models.ErrorResponse
// @Router       /complaints/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	return c.JSON(h.repo.FilterByOwner(auth.MustUserID(c)))
}

// @Summary      Complaint detail
// @Description  Owner or admin gets a complaint with its full update history
// @Tags         complaints
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "complaint id"
// @Success      200  {object}  models.Complaint
// @Failure      404  {object}  models.ErrorResponse
// @Router       /complaints/{id} [get]
func (h *Handler) GetDetail(c *fiber.Ctx) error {
	cs, ok := h.repo.Get(c.Params("id"))
	if !ok {
		return fiber.ErrNotFound
	}
	// Citizens observe only their own complaints. A foreign id answers 404,
	// not 403, so ids cannot be probed.
	if auth.MustRole(c) != string(models.RoleAdmin) && cs.UserID != auth.MustUserID(c) {
		return fiber.ErrNotFound
	}
	return c.JSON(cs)
}

/* ============================= Admin views ============================== */

// @Summary      Triage table
// @Description  Admin lists all complaints, optionally filtered by status facet
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        status  query string false "submitted|in_progress|resolved|rejected|all"
// @Success      200  {array}  TriageItem
// @Failure      400  {object}  models.ErrorResponse
// @Router       /admin/complaints [get]
func (h *Handler) AdminList(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status", StatusFilterAll))
	if status != StatusFilterAll && !models.ComplaintStatus(status).Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status facet")
	}

	list := h.repo.FilterByStatus(status)
	items := make([]TriageItem, 0, len(list))
	for _, cs := range list {
		items = append(items, TriageItem{
			ID:            cs.ID,
			IssueType:     cs.IssueType,
			SeverityScore: cs.SeverityScore,
			Status:        cs.Status,
			Address:       cs.Address,
			Preview:       sanitize.Summary(cs.AIDescription, 120),
			UserName:      cs.UserName,
			CreatedAt:     cs.CreatedAt,
			Updates:       len(cs.Updates),
		})
	}
	return c.JSON(items)
}

// @Summary      Overview stats
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Stats
// @Router       /admin/stats [get]
func (h *Handler) AdminStats(c *fiber.Ctx) error {
	return c.JSON(h.repo.Stats())
}

// @Summary      Update complaint status
// @Description  Admin transitions a complaint and appends an audit event
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string               true "complaint id"
// @Param        payload  body UpdateStatusRequest  true "status change"
// @Success      200  {object}  models.Complaint
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/complaints/{id}/status [patch]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var in UpdateStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	user := auth.CurrentUser(c)
	updated, err := h.repo.ApplyStatusUpdate(c.Context(), StatusUpdateInput{
		ID:            c.Params("id"),
		NewStatus:     models.ComplaintStatus(in.Status),
		Message:       strings.TrimSpace(in.Message),
		ActorName:     user.Name,
		ActorRole:     user.Role,
		ProofImageURL: in.ProofImageURL,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, ErrPermissionDenied):
		return fiber.ErrForbidden
	case errors.Is(err, ErrInvalidStatus):
		return fiber.NewError(fiber.StatusBadRequest, "invalid complaint status")
	case err != nil:
		return fiber.ErrInternalServerError
	}

	if err := h.publisher.PublishStatusUpdate(messaging.StatusUpdateMessage{
		ComplaintID: updated.ID,
		NewStatus:   string(updated.Status),
		Message:     in.Message,
		UpdatedBy:   user.Name,
		ReporterID:  updated.UserID,
		Timestamp:   time.Now().Unix(),
	}); err != nil {
		h.log.Warn("status event publish failed", zap.Error(err))
	}

	return c.JSON(updated)
}
