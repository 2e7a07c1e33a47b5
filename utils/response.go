package utils

import "github.com/gin-gonic/gin"

// ErrorResponse is the uniform body for failed requests.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Respond writes data as the JSON body with the given status code.
func Respond(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, data)
}

// Success returns a 200 response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, data)
}

// Message returns a 200 response carrying only a human readable message.
func Message(ctx *gin.Context, message string) {
	Respond(ctx, 200, gin.H{"message": message})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, ErrorResponse{Code: code, Message: message})
}
