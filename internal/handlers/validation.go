package handlers

import (
	"errors"
	"strconv"

	"payments/internal/money"
)

var errInvalidAmount = errors.New("invalid amount")
var errInvalidID = errors.New("invalid id")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
