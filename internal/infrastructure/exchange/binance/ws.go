package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tickd/internal/application/port"
)

// TickerTopic returns the combined-stream name of the 24h rolling ticker
// for a symbol, e.g. "btcusdt@ticker".
func TickerTopic(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol)) + "@ticker"
}

// tickerMsg is the wire shape of one ticker event. Numeric fields arrive as
// strings.
type tickerMsg struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	QuoteVol  string `json:"q"`
}

// DecodeTicker translates a raw ticker payload into the canonical frame.
// It is the single place wire field names are known.
func DecodeTicker(topic string, data []byte) (port.Frame, error) {
	var msg tickerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return port.Frame{}, fmt.Errorf("ticker payload: %w", err)
	}
	sym := strings.ToUpper(strings.TrimSpace(msg.Symbol))
	if sym == "" {
		return port.Frame{}, errors.New("ticker payload missing symbol")
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(msg.Close), 64)
	if err != nil {
		return port.Frame{}, fmt.Errorf("ticker close price %q: %w", msg.Close, err)
	}

	return port.Frame{
		Topic:       topic,
		Symbol:      sym,
		Close:       px,
		Open:        parseF(msg.Open),
		High:        parseF(msg.High),
		Low:         parseF(msg.Low),
		Volume:      parseF(msg.Volume),
		QuoteVolume: parseF(msg.QuoteVol),
		EventTime:   msg.EventTime,
	}, nil
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
