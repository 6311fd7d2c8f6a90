// Package server assembles the HTTP router from the domain handlers.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/upload"
	"contactdesk/internal/middleware"
	"contactdesk/internal/pkg/jwt"
	"contactdesk/internal/storage"
)

type Deps struct {
	DB          *gorm.DB
	Tokens      *jwt.Service
	Storage     storage.Driver
	Hub         *contact.Hub
	Log         *zap.Logger
	CORSOrigins []string
}

// routeMounter is implemented by storage drivers that serve objects
// themselves (the local driver).
type routeMounter interface {
	RegisterRoutes(r gin.IRouter)
}

func NewRouter(d Deps) *gin.Engine {
	if d.Hub == nil {
		d.Hub = contact.NewHub(d.Log.Named("hub"))
	}

	contactService := contact.NewService(contact.NewRepository(d.DB), d.Hub, d.Log)
	contactHandler := contact.NewHandler(contactService, d.Hub, d.Tokens, d.Log)

	uploadService := upload.NewService(d.Storage, d.Log)
	uploadHandler := upload.NewHandler(uploadService)

	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log), middleware.CORS(d.CORSOrigins), middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": d.Storage.Name()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if m, ok := d.Storage.(routeMounter); ok {
		m.RegisterRoutes(r)
	}

	v1 := r.Group("/api/v1")
	{
		// public: the feed authenticates from ?token=
		contact.RegisterFeedRoutes(v1, contactHandler)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.Tokens), middleware.Operators())
		{
			contact.RegisterRoutes(protected, contactHandler)
			upload.RegisterRoutes(protected, uploadHandler)
		}
	}

	return r
}
