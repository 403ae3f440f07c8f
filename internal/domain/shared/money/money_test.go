package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMajorFormatting(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{2000, "20"},
		{2050, "20.50"},
		{5, "0.05"},
		{-150, "-1.50"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Must(tc.amount, "USD").Major())
	}
}

func TestStringUsesSymbol(t *testing.T) {
	assert.Equal(t, "$20", Must(2000, "usd").String())
	assert.Equal(t, "20 zł", Must(2000, "PLN").String())
	assert.Equal(t, "20 CHF", Must(2000, "CHF").String())
}

func TestAddRejectsMismatchedCurrencies(t *testing.T) {
	_, err := Must(100, "USD").Add(Must(100, "EUR"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(100, "USD").Add(Must(250, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(350), sum.Amount)
}

func TestNewValidatesCurrency(t *testing.T) {
	_, err := New(100, "US")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	m, err := FromMajor(20, "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), m.Amount)
	assert.Equal(t, "USD", m.Currency)
}
