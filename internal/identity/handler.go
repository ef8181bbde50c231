package identity

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type provisionRequest struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	UsePhantomPay bool   `json:"use_phantom_pay"`
}

type userResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	UsePhantomPay bool      `json:"use_phantom_pay"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(u User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email, UsePhantomPay: u.UsePhantomPay, CreatedAt: u.CreatedAt}
}

// Provision handles user onboarding.
func (h *Handler) Provision(c *fiber.Ctx) error {
	var req provisionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Provision(c.UserContext(), ProvisionInput{
		Username: req.Username, FullName: req.FullName, Email: req.Email,
		Password: req.Password, UsePhantomPay: req.UsePhantomPay,
	})
	if err != nil {
		if errors.Is(err, walletapi.ErrValidation) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(user))
}

// Get returns a provisioned user.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "user id must be a positive integer")
	}
	user, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, walletapi.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(toResponse(user))
}
