package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"study-backend/internal/shared/server/middleware"
	"study-backend/internal/shared/server/respond"
	"study-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
}

func (h *Handler) register(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Invalid user data", nil)
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err, "Failed to register user")
		return
	}
	middleware.SetUserID(c, user.ID)
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	respond.Created(c, user)
}

func (h *Handler) login(c *gin.Context) {
	var in LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Username and password are required", nil)
		return
	}
	user, err := h.Svc.Login(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err, "Failed to login")
		return
	}
	middleware.SetUserID(c, user.ID)
	respond.OK(c, user)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var fe *FieldError
	var dup *DuplicateError
	switch {
	case errors.As(err, &fe):
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid user data", fe.Fields)
	case errors.As(err, &dup):
		respond.Error(c, http.StatusBadRequest, "duplicate", capitalize(dup.Error()), nil)
	case errors.Is(err, ErrDuplicateKey):
		respond.Error(c, http.StatusBadRequest, "duplicate", "Username or email already exists", nil)
	case errors.Is(err, ErrUnauthorized):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid username or password", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
