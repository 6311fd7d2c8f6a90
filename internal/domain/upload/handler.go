package upload

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"contactdesk/internal/pkg/response"
	"contactdesk/internal/storage"
)

type AuthorizeRequest struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

// AuthorizeResponse carries uploadURL for the PUT variant, url+fields for
// the POST variant. ContentType is the media type the grant is bound to and
// must be sent verbatim with the transfer.
type AuthorizeResponse struct {
	Method      string            `json:"method"`
	UploadURL   string            `json:"uploadURL,omitempty"`
	URL         string            `json:"url,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Key         string            `json:"key"`
	ContentType string            `json:"contentType"`
	PublicURL   string            `json:"publicURL"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

func newAuthorizeResponse(a *storage.Authorization) AuthorizeResponse {
	resp := AuthorizeResponse{
		Method:      a.Method,
		Key:         a.Key,
		ContentType: a.ContentType,
		PublicURL:   a.PublicURL,
		ExpiresAt:   a.ExpiresAt,
	}
	if a.Method == storage.MethodPost {
		resp.URL = a.URL
		resp.Fields = a.Fields
	} else {
		resp.UploadURL = a.URL
	}
	return resp
}

// Handler handles HTTP requests for upload authorizations.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Authorize godoc
// @Summary Issue a short-lived upload authorization
// @Description Returns a presigned PUT URL or a POST policy bound to one object key.
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AuthorizeRequest true "File name and MIME type"
// @Success 200 {object} AuthorizeResponse
// @Failure 400,401,500 {object} map[string]interface{}
// @Router /uploads/authorize [post]
func (h *Handler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "fileName and fileType are required")
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.FileType = strings.TrimSpace(req.FileType)
	if req.FileName == "" || req.FileType == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "fileName and fileType are required")
		return
	}

	auth, err := h.service.Authorize(c.Request.Context(), req.FileName, req.FileType)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMimeType):
			response.Error(c, http.StatusBadRequest, "INVALID_MIME_TYPE", err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "UPLOAD_AUTHORIZATION_FAILED", "Error generating upload URL")
		}
		return
	}

	response.Success(c, http.StatusOK, newAuthorizeResponse(auth))
}
