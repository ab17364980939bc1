package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"experienceboard/internal/app"
	"experienceboard/internal/model"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/transport/http/middleware"
	"experienceboard/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
	log         *logger.Logger
}

type GoogleSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

func NewAuthHandler(authService *app.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Google(c *gin.Context) {
	var req GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.SignIn(c.Request.Context(), req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidIDToken):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidIDToken, "sign-in failed, please try again")
		case errors.Is(err, app.ErrDomainNotAllowed):
			response.Error(c, http.StatusForbidden, response.CodeDomainNotAllowed, "please sign in with your institute account")
		default:
			h.log.Error("sign-in failed", "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "sign-in failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user":       userView(result.User),
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
			return
		}
		h.log.Error("fetch current user failed", "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current user failed")
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return
	}

	response.OK(c, userView(user))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.SignOut(c.Request.Context(), middleware.Claims(c)); err != nil {
		h.log.Error("sign-out failed", "user_id", middleware.UserID(c), "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "sign-out failed, please try again")
		return
	}
	response.OK(c, nil)
}

func userView(u *model.User) gin.H {
	return gin.H{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	}
}
