package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stocks-simulator/portfolio"
)

func (h *Handler) GetQuote(c *gin.Context) {
	q, err := h.Trading.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":        q.Symbol,
		"name":          q.Name,
		"price":         q.Price,
		"price_display": portfolio.USD(q.Price),
	})
}

func (h *Handler) GetPriceHistory(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Historical data not available"})
		return
	}
	symbol, err := portfolio.NormalizeSymbol(c.Param("symbol"))
	if err != nil {
		abort(c, err)
		return
	}

	prices, err := h.History.Daily(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to fetch historical data"})
		return
	}
	if len(prices) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Historical data not found"})
		return
	}
	c.JSON(http.StatusOK, prices)
}
