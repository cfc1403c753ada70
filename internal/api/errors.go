package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/imagegate/internal/domain"
)

// Error codes for failures that are not pipeline rejections.
const (
	CodeFileRequired = "FILE_REQUIRED"
	CodeInvalidID    = "INVALID_ID"
	CodeNotFound     = "NOT_FOUND"
)

func statusForReason(reason domain.Reason) int {
	switch reason {
	case domain.ReasonTooSmall, domain.ReasonMalformed:
		return http.StatusBadRequest
	case domain.ReasonTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.ReasonUnsupportedType:
		return http.StatusUnsupportedMediaType
	case domain.ReasonCorruptContent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func messageForReason(reason domain.Reason) string {
	switch reason {
	case domain.ReasonTooSmall:
		return "File is too small"
	case domain.ReasonTooLarge:
		return "File exceeds the maximum upload size"
	case domain.ReasonUnsupportedType:
		return "File type is not allowed"
	case domain.ReasonCorruptContent:
		return "File content is not a valid image"
	case domain.ReasonMalformed:
		return "Request must be a valid multipart/form-data body"
	default:
		return "Failed to process upload"
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// abortWithRejection answers a pipeline failure. Server-side failures are
// logged with the request id; the client only sees the generic message.
func abortWithRejection(c *gin.Context, err error) {
	reason := domain.ReasonOf(err)
	if !reason.ClientCorrectable() {
		requestID, _ := c.Get(ContextRequestIDKey)
		log.Printf("ERROR: [%v] Upload failed: %v", requestID, err)
	}
	abortWithCode(c, statusForReason(reason), string(reason), messageForReason(reason))
}
