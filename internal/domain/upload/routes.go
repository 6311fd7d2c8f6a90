package upload

import "github.com/gin-gonic/gin"

// RegisterRoutes registers upload routes under the protected group.
// Only the authorization is issued here; the bytes go straight to storage.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	uploads := r.Group("/uploads")
	{
		uploads.POST("/authorize", h.Authorize)
	}
}
