package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stocks-simulator/middleware"
	"stocks-simulator/models"
	"stocks-simulator/portfolio"
	"stocks-simulator/trading"
)

// shareCount keeps the text of a share count sent either as a JSON number or
// a string, so malformed counts reach ParseShares instead of failing binding.
type shareCount string

func (s *shareCount) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = shareCount(str)
		return nil
	}
	*s = shareCount(b)
	return nil
}

type OrderInput struct {
	Symbol string     `json:"symbol" form:"symbol"`
	Shares shareCount `json:"shares" form:"shares"`
}

func (in OrderInput) parse() (string, int64, error) {
	symbol, err := portfolio.NormalizeSymbol(in.Symbol)
	if err != nil {
		return "", 0, err
	}
	shares, err := portfolio.ParseShares(string(in.Shares))
	if err != nil {
		return "", 0, err
	}
	return symbol, shares, nil
}

type DepositInput struct {
	Amount decimal.Decimal `json:"amount" form:"amount"`
}

type receiptResponse struct {
	Message     string             `json:"message"`
	Transaction models.Transaction `json:"transaction"`
	Name        string             `json:"name"`
	Cash        decimal.Decimal    `json:"cash"`
	CashDisplay string             `json:"cash_display"`
}

func newReceiptResponse(msg string, r trading.Receipt) receiptResponse {
	return receiptResponse{
		Message:     msg,
		Transaction: r.Transaction,
		Name:        r.Quote.Name,
		Cash:        r.Cash,
		CashDisplay: portfolio.USD(r.Cash),
	}
}

func (h *Handler) bindOrder(c *gin.Context) (string, int64, bool) {
	var input OrderInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", 0, false
	}
	symbol, shares, err := input.parse()
	if err != nil {
		abort(c, err)
		return "", 0, false
	}
	return symbol, shares, true
}

func (h *Handler) Buy(c *gin.Context) {
	symbol, shares, ok := h.bindOrder(c)
	if !ok {
		return
	}
	r, err := h.Trading.Buy(c.Request.Context(), middleware.UserID(c), symbol, shares)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newReceiptResponse("Purchase Successful!", r))
}

func (h *Handler) Sell(c *gin.Context) {
	symbol, shares, ok := h.bindOrder(c)
	if !ok {
		return
	}
	r, err := h.Trading.Sell(c.Request.Context(), middleware.UserID(c), symbol, shares)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newReceiptResponse("Sold!", r))
}

type holdingResponse struct {
	portfolio.Row
	PriceDisplay string `json:"price_display"`
	TotalDisplay string `json:"total_display"`
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	view, err := h.Trading.Portfolio(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		abort(c, err)
		return
	}

	rows := make([]holdingResponse, 0, len(view.Holdings))
	for _, row := range view.Holdings {
		rows = append(rows, holdingResponse{
			Row:          row,
			PriceDisplay: portfolio.USD(row.Price),
			TotalDisplay: portfolio.USD(row.Total),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"holdings":          rows,
		"cash":              view.Cash,
		"cash_display":      portfolio.USD(view.Cash),
		"net_worth":         view.NetWorth,
		"net_worth_display": portfolio.USD(view.NetWorth),
	})
}

func (h *Handler) GetHoldings(c *gin.Context) {
	holdings, err := h.Trading.Holdings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, holdings)
}

type historyEntry struct {
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	Shares       int64           `json:"shares"`
	Price        decimal.Decimal `json:"price"`
	PriceDisplay string          `json:"price_display"`
	TransactedAt time.Time       `json:"transacted_at"`
}

func (h *Handler) GetHistory(c *gin.Context) {
	txs, err := h.Trading.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		abort(c, err)
		return
	}

	entries := make([]historyEntry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, historyEntry{
			Symbol:       tx.Symbol,
			Side:         tx.Side(),
			Shares:       tx.Shares,
			Price:        tx.Price,
			PriceDisplay: portfolio.USD(tx.Price),
			TransactedAt: tx.TransactedAt,
		})
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) AddCash(c *gin.Context) {
	var input DepositInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cash, err := h.Trading.Deposit(c.Request.Context(), middleware.UserID(c), input.Amount)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Added Cash to Balance!",
		"cash":         cash,
		"cash_display": portfolio.USD(cash),
	})
}
