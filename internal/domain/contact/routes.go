package contact

import "github.com/gin-gonic/gin"

// RegisterRoutes registers contact routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	contacts := r.Group("/contacts")
	{
		contacts.GET("", h.List)
		contacts.POST("", h.Create)
		contacts.POST("/batch", h.CreateBatch)
		contacts.GET("/:id", h.Get)
		contacts.PATCH("/:id", h.Update)
		contacts.DELETE("/:id", h.Delete)
	}
}

// RegisterFeedRoutes registers the websocket change feed. It authenticates
// from the query string, so it lives outside the bearer-header group.
func RegisterFeedRoutes(r *gin.RouterGroup, h *Handler) {
	r.GET("/contacts/ws", h.Watch)
}
