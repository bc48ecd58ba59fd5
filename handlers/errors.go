package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stocks-simulator/ledger"
	"stocks-simulator/portfolio"
)

// abort writes the JSON error response matching err.
func abort(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, portfolio.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, portfolio.ErrUnknownSymbol):
		status, msg = http.StatusNotFound, "invalid symbol"
	case errors.Is(err, portfolio.ErrQuoteUnavailable):
		status, msg = http.StatusServiceUnavailable, "quote unavailable, try again later"
	case errors.Is(err, portfolio.ErrInsufficientFunds), errors.Is(err, portfolio.ErrInsufficientShares):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ledger.ErrUsernameTaken):
		status, msg = http.StatusConflict, "username already exists"
	case errors.Is(err, ledger.ErrNotFound):
		// authenticated callers always exist
		log.Error().Err(err).Msg("authenticated user missing from ledger")
	case errors.Is(err, ledger.ErrStoreUnavailable):
		log.Error().Err(err).Msg("store unavailable")
	default:
		log.Error().Err(err).Msg("unhandled error")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
