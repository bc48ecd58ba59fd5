package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocks-simulator/models"
)

func TestValidateBuy(t *testing.T) {
	stock := models.Quote{Symbol: "ACME", Name: "Acme Corp", Price: dec("20.00")}

	t.Run("cost above cash is rejected", func(t *testing.T) {
		cash, err := ValidateBuy(dec("150.00"), stock, 10)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assertDecimal(t, "150.00", cash)
	})

	t.Run("affordable buy returns remaining cash", func(t *testing.T) {
		cash, err := ValidateBuy(dec("150.00"), stock, 5)
		require.NoError(t, err)
		assertDecimal(t, "50.00", cash)
	})

	t.Run("spending every cent is allowed", func(t *testing.T) {
		cash, err := ValidateBuy(dec("100.00"), stock, 5)
		require.NoError(t, err)
		assert.True(t, cash.IsZero())
	})

	t.Run("fractional prices", func(t *testing.T) {
		cash, err := ValidateBuy(dec("10.00"), models.Quote{Price: dec("3.33")}, 3)
		require.NoError(t, err)
		assertDecimal(t, "0.01", cash)
	})

	t.Run("non positive shares", func(t *testing.T) {
		_, err := ValidateBuy(dec("150.00"), stock, 0)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = ValidateBuy(dec("150.00"), stock, -1)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestValidateSell(t *testing.T) {
	assert.ErrorIs(t, ValidateSell(2, 3), ErrInsufficientShares)
	assert.ErrorIs(t, ValidateSell(0, 1), ErrInsufficientShares)
	assert.NoError(t, ValidateSell(5, 2))
	assert.NoError(t, ValidateSell(5, 5))
	assert.ErrorIs(t, ValidateSell(5, 0), ErrValidation)
}

func TestParseShares(t *testing.T) {
	for _, raw := range []string{"", " ", "abc", "1.5", "-2", "+3", "0", "00", "1e3", "99999999999999999999"} {
		_, err := ParseShares(raw)
		assert.ErrorIsf(t, err, ErrValidation, "input %q", raw)
	}
	n, err := ParseShares(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestNormalizeSymbol(t *testing.T) {
	s, err := NormalizeSymbol("  nflx ")
	require.NoError(t, err)
	assert.Equal(t, "NFLX", s)

	_, err = NormalizeSymbol("   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUSD(t *testing.T) {
	assert.Equal(t, "$1,234.50", USD(dec("1234.5")))
	assert.Equal(t, "$0.00", USD(dec("0")))
	assert.Equal(t, "$10.01", USD(dec("10.005")))
}
