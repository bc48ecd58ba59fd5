package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"stocks-simulator/ledger"
	"stocks-simulator/market"
	"stocks-simulator/middleware"
	"stocks-simulator/trading"
)

// Handler serves the HTTP API. Redis and History are optional.
type Handler struct {
	Trading  *trading.Service
	Accounts ledger.Accounts
	History  *market.History
	Redis    *redis.Client

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	StartingCash    decimal.Decimal
}

func (h *Handler) Routes(r gin.IRouter) {
	// Public routes
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)

	// Protected routes
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(h.JWTSecret))
	{
		auth.POST("/logout", h.Logout)
		auth.GET("/quote/:symbol", h.GetQuote)
		auth.GET("/prices/:symbol/history", h.GetPriceHistory)
		auth.POST("/buy", h.Buy)
		auth.POST("/sell", h.Sell)
		auth.GET("/portfolio", h.GetPortfolio)
		auth.GET("/holdings", h.GetHoldings)
		auth.GET("/history", h.GetHistory)
		auth.POST("/cash", h.AddCash)
	}
}
