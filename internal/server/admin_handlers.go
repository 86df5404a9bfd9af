package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const cookiePath = "/"

type loginRequestPayload struct {
	Password *string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Password == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if !h.gate.CheckPassword(*request.Password) {
		h.logger.Warn("admin login rejected", zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, err := h.gate.IssueToken()
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.gate.CookieName(), token, int(h.gate.CookieTTL().Seconds()), cookiePath, "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.gate.CookieName(), "", -1, cookiePath, "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	authenticated := h.gate.ValidateRequest(c.Request) == nil
	c.JSON(http.StatusOK, gin.H{"authenticated": authenticated})
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	if err := h.gate.ValidateRequest(c.Request); err != nil {
		if errors.Is(err, auth.ErrExpiredAdminToken) || errors.Is(err, auth.ErrMissingAdminToken) {
			h.logger.Info("admin token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("admin token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}
