package httptransport

import "github.com/gin-gonic/gin"

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func RespondSuccess(c *gin.Context, httpStatus int, data any, message string) {
	if message == "" {
		message = "ok"
	}

	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError writes the failure envelope. A nil data becomes {"error": message}.
func RespondError(c *gin.Context, httpStatus int, message string, data any) {
	if data == nil {
		data = gin.H{"error": message}
	}

	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// AbortWithError writes the failure envelope and stops the handler chain.
func AbortWithError(c *gin.Context, httpStatus int, message string) {
	RespondError(c, httpStatus, message, nil)
	c.Abort()
}
