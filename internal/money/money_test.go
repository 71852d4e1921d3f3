package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCentsPositive(t *testing.T) {
	assert.True(t, Cents(1).Positive())
	assert.True(t, Cents(500).Positive())
	assert.False(t, Cents(0).Positive())
	assert.False(t, Cents(-500).Positive())
}

func TestCentsDecimal(t *testing.T) {
	cases := []struct {
		cents Cents
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{50, "0.50"},
		{500, "5.00"},
		{1099, "10.99"},
		{123456, "1234.56"},
		{-1099, "-10.99"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.cents.Decimal(), "cents=%d", tc.cents)
	}
}
