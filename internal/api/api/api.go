package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"eventhub/cmd/middleware"
	"eventhub/internal/service"
)

type Routers struct {
	Service service.Service
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.New(corsConfig()))

	app.GET("/health", r.Service.Health)
	app.GET("/ready", r.Service.Ready)

	apiGroup := app.Group("/v1")
	apiGroup.Use(r.Service.Authenticate)

	apiGroup.POST("/auth/signup", r.Service.Signup)
	apiGroup.POST("/auth/login", r.Service.Login)

	apiGroup.GET("/events", r.Service.ListEvents)
	apiGroup.GET("/events/categories", r.Service.Categories)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.GET("/events/:id/ics", r.Service.ExportICS)

	private := apiGroup.Group("")
	private.Use(r.Service.RequireUser)

	private.POST("/auth/logout", r.Service.Logout)
	private.GET("/me", r.Service.Me)
	private.GET("/me/hosting", r.Service.MyHosting)
	private.GET("/me/attending", r.Service.MyAttending)
	private.GET("/me/requests", r.Service.MyRequests)

	private.POST("/events", r.Service.CreateEvent)
	private.PATCH("/events/:id", r.Service.UpdateEvent)
	private.DELETE("/events/:id", r.Service.DeleteEvent)

	private.POST("/events/:id/rsvp", r.Service.RequestRsvp)
	private.DELETE("/events/:id/rsvp", r.Service.CancelRsvp)
	private.POST("/events/:id/rsvp/:userId", r.Service.RespondRsvp)

	return app
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AddAllowHeaders("Authorization")
	return cfg
}
