package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"flightbooking/internal/money"
)

var errInvalidAmount = errors.New("invalid amount")

// parseAmountMinor accepts a positive decimal with at most two places.
func parseAmountMinor(raw json.Number) (int64, error) {
	amount, err := money.ParsePositiveMinor(raw.String())
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func clamp(value, lower, upper int) int {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}
