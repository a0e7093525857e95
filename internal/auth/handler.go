package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebridge/backend/pkg/response"
	"github.com/coursebridge/backend/pkg/utils"
)

// TokenRequest is the body for POST /auth/token.
type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// Handler handles the service-account token endpoint.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Token handles POST /auth/token: exchanges client credentials for a JWT
// carrying the account's capability list.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	account, err := h.repo.GetByClientID(c.Request.Context(), req.ClientID)
	if err != nil {
		h.logger.Error("service account lookup failed", zap.Error(err))
		response.Internal(c, "token issue failed")
		return
	}
	if account == nil || !utils.CheckSecret(req.ClientSecret, account.SecretHash) {
		response.Unauthorized(c, "invalid client credentials")
		return
	}
	token, err := h.jwt.Generate(account.ClientID, account.Capabilities)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		response.Internal(c, "token issue failed")
		return
	}
	response.OK(c, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.jwt.TTL().Seconds()),
	})
}
