package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

type AdminHandler struct {
	sessions SessionRevoker
}

func NewAdminHandler(sessions SessionRevoker) *AdminHandler {
	return &AdminHandler{sessions: sessions}
}

type RevokeSessionsResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// RevokeSessions ends every refresh-token session the user holds.
func (h *AdminHandler) RevokeSessions(ctx *gin.Context) {
	n, err := h.sessions.RevokeAll(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		Fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, RevokeSessionsResponse{Message: "sessions revoked", Revoked: n})
}
