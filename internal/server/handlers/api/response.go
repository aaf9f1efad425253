package api

import "github.com/gin-gonic/gin"

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}

// AbortWithMessage is AbortWithError for errors produced by the handler itself.
func AbortWithMessage(ctx *gin.Context, status int, code string, message string) {
	ctx.Abort()
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: message,
	})
}
