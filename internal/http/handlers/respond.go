package handlers

import (
	"github.com/gin-gonic/gin"
)

type MessageResponse struct {
	Message string `json:"message"`
}

// Fail hands err to the error middleware and stops the chain.
func Fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func RespondMessage(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, MessageResponse{Message: message})
}
