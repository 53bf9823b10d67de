package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/civiceye/civiceye-backend/pkg/models"
	"github.com/civiceye/civiceye-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /login. There are no credentials by design: the login is
// a role selector, and whatever role is asked for is granted.
type LoginRequest struct {
	Role  string `json:"role" validate:"required,oneof=citizen admin"`
	Name  string `json:"name" validate:"omitempty,min=2,max=80"`
	Email string `json:"email" validate:"omitempty,email,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
}

// Standard auth response
type AuthResponse struct {
	Token   string             `json:"token"`
	Profile models.UserProfile `json:"profile"`
}

/* ============================== Handler ================================= */

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

// Demo identities used when the login request gives no name, matching the
// two mock users of the original UI.
var demoProfiles = map[models.Role]models.UserProfile{
	models.RoleCitizen: {Name: "John Citizen", Email: "john@example.com", Phone: "555-0199"},
	models.RoleAdmin:   {Name: "Admin Sarah", Email: "sarah.admin@city.gov", Phone: "555-9000"},
}

/* ================================ Login ================================= */

// @Summary      Login (role selector)
// @Description  Issue a session token for the chosen role. No credential verification.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	role := models.Role(in.Role)
	profile := models.UserProfile{
		UID:       uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if demo, ok := demoProfiles[role]; ok {
		if profile.Name == "" {
			profile.Name = demo.Name
		}
		if profile.Email == "" {
			profile.Email = demo.Email
		}
		if profile.Phone == "" {
			profile.Phone = demo.Phone
		}
	}

	token, err := IssueToken(profile)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(AuthResponse{Token: token, Profile: profile})
}

/* ================================= Me =================================== */

// @Summary      Get current session profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.UserProfile
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	return c.JSON(CurrentUser(c))
}
