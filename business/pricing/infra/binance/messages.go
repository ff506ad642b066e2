// Package binance implements a PriceSource over Binance book tickers.
package binance

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// StreamEvent is the combined-stream wrapper.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// BookTickerResponse is the REST /api/v3/ticker/bookTicker payload.
type BookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// Top is a parsed best bid/ask.
type Top struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Mid returns the mid price.
func (t Top) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

// SpreadRatio returns (ask - bid) / mid.
func (t Top) SpreadRatio() decimal.Decimal {
	mid := t.Mid()
	if mid.IsZero() {
		return decimal.Zero
	}
	return t.Ask.Sub(t.Bid).Div(mid)
}

func parseTop(bid, ask string) (Top, error) {
	b, err := decimal.NewFromString(bid)
	if err != nil {
		return Top{}, err
	}
	a, err := decimal.NewFromString(ask)
	if err != nil {
		return Top{}, err
	}
	return Top{Bid: b, Ask: a}, nil
}

// Parse returns the event's best bid/ask.
func (e *BookTickerEvent) Parse() (Top, error) {
	return parseTop(e.BidPrice, e.AskPrice)
}

// Parse returns the response's best bid/ask.
func (r *BookTickerResponse) Parse() (Top, error) {
	return parseTop(r.BidPrice, r.AskPrice)
}

// BookTickerStream returns the bookTicker stream name for a symbol.
func BookTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}
