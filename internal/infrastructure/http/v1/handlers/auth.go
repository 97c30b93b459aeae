package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	appctx "github.com/thenano/openmrs-module-idgen/internal/core/context"
	"github.com/thenano/openmrs-module-idgen/internal/domain/auth"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login exchanges credentials for an access token.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), auth.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Username:  result.User.Username,
		IsAdmin:   result.User.IsAdmin,
	})
}

// Me describes the authenticated actor.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor := appctx.GetActor(c.Request.Context())
	if actor == nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return
	}

	h.OK(c, dto.MeResponse{
		UserID:     actor.UserID,
		Username:   actor.Username,
		Privileges: actor.Privileges,
		IsAdmin:    actor.IsAdmin,
	})
}
