package rest

import (
	"github.com/gin-gonic/gin"
)

// Error codes returned alongside the message.
const (
	errCodeInvalidRequest = "INVALID_REQUEST"
	errCodeNotFound       = "NOT_FOUND"
	errCodeActiveJob      = "ACTIVE_JOB_EXISTS"
	errCodeQueueFull      = "QUEUE_FULL"
	errCodeInternal       = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Code: code})
}
