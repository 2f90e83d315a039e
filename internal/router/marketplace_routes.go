package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/handler"
	"github.com/iliyamo/script-marketplace/internal/middleware"
)

// Marketplace groups the handlers behind the /v1 marketplace routes.
type Marketplace struct {
	Scripts       *handler.ScriptHandler
	Listings      *handler.ListingHandler
	Applications  *handler.ApplicationHandler
	Conversations *handler.ConversationHandler
}

// RegisterMarketplace registers the writer, producer and shared routes.
// Every route needs a valid access token; role checks are per route.
// browseCache wraps GET /v1/listings, whose body is the same for every
// caller allowed to see it.
func RegisterMarketplace(e *echo.Echo, m Marketplace, jwtSecret string, browseCache echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// ---- Writer ----
	g.POST("/scripts", m.Scripts.Create, writerOnly)
	g.GET("/my/scripts", m.Scripts.ListMine, writerOnly)
	g.PUT("/scripts/:id", m.Scripts.Update, writerOnly)
	g.POST("/applications", m.Applications.Apply, writerOnly)
	g.GET("/my/applications", m.Applications.ListMine, writerOnly)

	// ---- Producer ----
	g.POST("/listings", m.Listings.Create, producerOnly)
	g.GET("/my/listings", m.Listings.ListMine, producerOnly)
	g.GET("/listings/:id/applications", m.Listings.ListApplications, producerOnly)
	g.POST("/applications/:id/accept", m.Applications.Accept, producerOnly)
	g.POST("/applications/:id/reject", m.Applications.Reject, producerOnly)
	g.POST("/applications/:id/purchase", m.Applications.Purchase, producerOnly)
	g.GET("/my/orders", m.Applications.MyOrders, producerOnly)

	// ---- Either role ----
	g.GET("/listings", m.Listings.Browse, eitherRole, browseCache)
	g.GET("/scripts", m.Scripts.Browse, eitherRole)
	g.GET("/scripts/:id", m.Scripts.Get, eitherRole)
	g.GET("/applications/:id", m.Applications.Get, eitherRole)
	g.GET("/applications/:id/conversation", m.Applications.Conversation, eitherRole)
	g.GET("/conversations/:id/messages", m.Conversations.ListMessages, eitherRole)
	g.POST("/conversations/:id/messages", m.Conversations.PostMessage, eitherRole)
	g.GET("/conversations/:id/stream", m.Conversations.Stream, eitherRole)
}
