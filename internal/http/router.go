package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/account", h.Account)
		api.GET("/dashboard", h.Dashboard)
		api.GET("/markets", h.Markets)
		api.GET("/history", h.History)
		api.GET("/session", h.CurrentSession)
	}

	writes := api.Group("", loopbackOnly())
	{
		writes.POST("/refresh", h.Refresh)
		writes.POST("/session", h.OpenSession)
		writes.PUT("/session/amount", h.SetAmount)
		writes.POST("/session/submit", h.Submit)
		writes.DELETE("/session", h.CloseSession)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
