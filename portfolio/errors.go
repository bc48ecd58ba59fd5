package portfolio

import "errors"

var (
	// ErrValidation marks malformed or missing user input.
	ErrValidation = errors.New("invalid input")

	// ErrUnknownSymbol is returned when the price source has no such symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrQuoteUnavailable is returned when the price source failed or timed out.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
)
