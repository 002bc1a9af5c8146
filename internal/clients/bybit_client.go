package clients

import (
	"github.com/hirokisan/bybit/v2"
)

func NewBybitClient() *bybit.Client {
	// market data endpoints are public, no auth needed for a price oracle
	return bybit.NewClient()
}
