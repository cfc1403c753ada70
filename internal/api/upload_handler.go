package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/imagegate/internal/domain"
	"alcyxob/imagegate/internal/service"
)

// UploadHandler holds the upload service dependency.
type UploadHandler struct {
	uploadService service.UploadService
	fieldName     string
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploadService service.UploadService, fieldName string) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, fieldName: fieldName}
}

// --- DTOs for API (Data Transfer Objects) ---

// UploadResponse is returned for an accepted upload.
type UploadResponse struct {
	ID           string `json:"id"`
	FileName     string `json:"fileName"` // Public path, e.g. /temp/<uuid>.png
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	URL          string `json:"url,omitempty"` // Presigned bucket URL when mirrored
}

// UploadDetailsResponse is the DTO for returning stored upload metadata.
type UploadDetailsResponse struct {
	ID           string            `json:"id"`
	FileName     string            `json:"fileName"`
	PublicPath   string            `json:"publicPath"`
	OriginalName string            `json:"originalName"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	UploadedBy   string            `json:"uploadedBy,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	UploadedAt   time.Time         `json:"uploadedAt"`
}

// MapUploadToResponse converts a domain.Upload to UploadDetailsResponse DTO.
func MapUploadToResponse(u *domain.Upload) UploadDetailsResponse {
	if u == nil {
		return UploadDetailsResponse{}
	}
	return UploadDetailsResponse{
		ID:           u.ID.Hex(),
		FileName:     u.FileName,
		PublicPath:   u.PublicPath,
		OriginalName: u.OriginalName,
		ContentType:  u.ContentType,
		Size:         u.Size,
		UploadedBy:   u.UploadedBy,
		Fields:       u.Fields,
		UploadedAt:   u.UploadedAt,
	}
}

// --- Handler Methods ---

// UploadFile godoc
// @Summary Upload an image
// @Description Accepts a single image in a multipart form. The ValidateUpload middleware has already checked it.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file (png, jpeg, gif or svg)"
// @Success 201 {object} UploadResponse "Upload accepted"
// @Failure 400 {object} gin.H "Too small, malformed or no file"
// @Failure 413 {object} gin.H "Too large"
// @Failure 415 {object} gin.H "Unsupported type (strict mode)"
// @Failure 422 {object} gin.H "Not a valid image"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /upload [post]
func (h *UploadHandler) UploadFile(c *gin.Context) {
	req, err := getUploadFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Upload validation did not run")
		return
	}
	if req.File == nil {
		abortWithCode(c, http.StatusBadRequest, CodeFileRequired, "An image is required in form field '"+h.fieldName+"'")
		return
	}

	uploadedBy, _ := getUserIDFromContext(c) // Empty when auth is disabled

	result, err := h.uploadService.CompleteUpload(c.Request.Context(), service.CompleteUploadInput{
		File:       req.File,
		Fields:     req.Fields,
		UploadedBy: uploadedBy,
	})
	if err != nil {
		requestID, _ := c.Get(ContextRequestIDKey)
		log.Printf("ERROR: [%v] Failed to complete upload %s: %v", requestID, req.File.Name, err)
		abortWithCode(c, http.StatusInternalServerError, string(domain.ReasonIOFailure), "Failed to store upload")
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{
		ID:           result.Upload.ID.Hex(),
		FileName:     result.Upload.PublicPath,
		OriginalName: result.Upload.OriginalName,
		Size:         result.Upload.Size,
		ContentType:  result.Upload.ContentType,
		URL:          result.URL,
	})
}

// GetUpload godoc
// @Summary Get upload metadata
// @Tags Uploads
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} UploadDetailsResponse
// @Failure 400 {object} gin.H "Invalid ID"
// @Failure 404 {object} gin.H "Not found"
// @Router /uploads/{id} [get]
func (h *UploadHandler) GetUpload(c *gin.Context) {
	upload, err := h.uploadService.GetUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUploadID):
			abortWithCode(c, http.StatusBadRequest, CodeInvalidID, "Invalid upload ID format")
		case errors.Is(err, service.ErrUploadNotFound):
			abortWithCode(c, http.StatusNotFound, CodeNotFound, "Upload not found")
		default:
			log.Printf("ERROR: Failed to get upload %s: %v", c.Param("id"), err)
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve upload")
		}
		return
	}
	c.JSON(http.StatusOK, MapUploadToResponse(upload))
}
