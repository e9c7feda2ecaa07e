package middleware

import (
	"net/http"
	"runtime/debug"

	"lifeline/models"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		// Handle errors that were set during request processing
		if len(c.Errors) > 0 {
			eh.handleGinErrors(c)
		}
	})
}

// handlePanic handles panic recovery
func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "Internal server error",
		Code:    "PANIC_RECOVERED",
	})
	c.Abort()
}

// handleGinErrors handles errors added to gin context
func (eh *ErrorHandler) handleGinErrors(c *gin.Context) {
	if c.Writer.Written() {
		return
	}

	ginErr := c.Errors.Last()

	if serviceErr, ok := utils.GetServiceError(ginErr.Err); ok {
		utils.ServiceErrorResponse(c, serviceErr)
		return
	}

	eh.logger.WithFields(logrus.Fields{
		"error":      ginErr.Error(),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
	}).Error("Unhandled request error")

	utils.InternalServerErrorResponse(c, "Internal server error")
}
