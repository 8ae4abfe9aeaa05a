package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WholeNumber(t *testing.T) {
	result, err := Parse("100")
	require.NoError(t, err)
	assert.True(t, result.Equal(decimal.NewFromInt(100)))
}

func TestParse_TwoDecimals(t *testing.T) {
	result, err := Parse("10.50")
	require.NoError(t, err)
	assert.Equal(t, "10.50", Format(result))
}

func TestParse_TrailingZerosBeyondScale(t *testing.T) {
	// 10.500 is still exactly representable at two places
	result, err := Parse("10.500")
	require.NoError(t, err)
	assert.Equal(t, "10.50", Format(result))
}

func TestParse_Negative(t *testing.T) {
	result, err := Parse("-42.10")
	require.NoError(t, err)
	assert.Equal(t, "-42.10", Format(result))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrEmptyAmount},
		{"   ", ErrEmptyAmount},
		{"abc", ErrInvalidAmount},
		{"1.2.3", ErrInvalidAmount},
		{"10.005", ErrTooManyDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
		{"-1.005", "-1.01"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(Round(decimal.RequireFromString(tt.input))))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "120.00", Format(Percent(decimal.NewFromInt(1200), decimal.NewFromInt(1000))))
	assert.Equal(t, "33.33", Format(Percent(decimal.NewFromInt(1), decimal.NewFromInt(3))))
	assert.True(t, Percent(decimal.NewFromInt(500), decimal.Zero).IsZero())
}

func TestApplyRate(t *testing.T) {
	assert.Equal(t, "180.00", Format(ApplyRate(decimal.NewFromInt(1000), decimal.NewFromInt(18))))
	assert.Equal(t, "1.00", Format(ApplyRate(decimal.RequireFromString("19.99"), decimal.NewFromInt(5))))
	assert.Equal(t, "2.48", Format(ApplyRate(decimal.RequireFromString("49.50"), decimal.NewFromInt(5))))
}

func TestHasScale(t *testing.T) {
	assert.True(t, HasScale(decimal.RequireFromString("1.10")))
	assert.False(t, HasScale(decimal.RequireFromString("1.101")))
}

func TestSum(t *testing.T) {
	assert.Equal(t, "6.60", Format(Sum(
		decimal.RequireFromString("1.10"),
		decimal.RequireFromString("2.20"),
		decimal.RequireFromString("3.30"),
	)))
	assert.True(t, Sum().IsZero())
}
