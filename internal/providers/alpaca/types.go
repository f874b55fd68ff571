package alpaca

import (
	"time"
)

// Feeds
const (
	FeedIEX = "iex"
	FeedSIP = "sip"
)

// Bar is one OHLCV aggregate
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// Date is the bar's calendar day in UTC
func (b Bar) Date() string {
	return b.Timestamp.UTC().Format(DateLayout)
}

// Snapshot summarizes the current market state of one symbol. Missing upstream
// sections leave their fields zero.
type Snapshot struct {
	Symbol               string     `json:"symbol"`
	LatestTradePrice     float64    `json:"latest_trade_price"`
	LatestTradeSize      int64      `json:"latest_trade_size"`
	LatestTradeTimestamp *time.Time `json:"latest_trade_timestamp"`
	AskPrice             float64    `json:"latest_quote_ask_price"`
	BidPrice             float64    `json:"latest_quote_bid_price"`
	LatestQuoteTimestamp *time.Time `json:"latest_quote_timestamp"`
	PrevDailyClose       float64    `json:"prev_daily_close"`
}

// DateLayout is the day format used for start and end parameters
const DateLayout = "2006-01-02"

// BarsQuery selects historical bars. A zero End means today (UTC), an empty
// Timeframe means 1Day and an empty Feed the client's default. Limit bounds
// each page, zero leaves it to the API.
type BarsQuery struct {
	Symbols   []string  `json:"symbols" validate:"required,min=1,dive,required"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Timeframe string    `json:"timeframe" validate:"required,oneof=1Min 5Min 15Min 30Min 1Hour 4Hour 1Day 1Week 1Month"`
	Feed      string    `json:"feed" validate:"omitempty,oneof=iex sip"`
	Limit     int       `json:"limit" validate:"gte=0,lte=10000"`
}

// wireBar is the compact bar encoding used on the wire
type wireBar struct {
	T  time.Time `json:"t"`
	O  float64   `json:"o"`
	H  float64   `json:"h"`
	L  float64   `json:"l"`
	C  float64   `json:"c"`
	V  float64   `json:"v"`
	N  float64   `json:"n"`
	VW float64   `json:"vw"`
}

func (w wireBar) bar(symbol string) Bar {
	return Bar{
		Symbol:     symbol,
		Timestamp:  w.T.UTC(),
		Open:       w.O,
		High:       w.H,
		Low:        w.L,
		Close:      w.C,
		Volume:     int64(w.V),
		TradeCount: int64(w.N),
		VWAP:       w.VW,
	}
}

type latestBarsResponse struct {
	Bars map[string]wireBar `json:"bars"`
}

type barsPage struct {
	Bars          map[string][]wireBar `json:"bars"`
	NextPageToken *string              `json:"next_page_token"`
}

type wireSnapshot struct {
	LatestTrade *struct {
		T time.Time `json:"t"`
		P float64   `json:"p"`
		S float64   `json:"s"`
	} `json:"latestTrade"`
	LatestQuote *struct {
		T  time.Time `json:"t"`
		AP float64   `json:"ap"`
		BP float64   `json:"bp"`
	} `json:"latestQuote"`
	PrevDailyBar *struct {
		C float64 `json:"c"`
	} `json:"prevDailyBar"`
}

func (w wireSnapshot) snapshot(symbol string) Snapshot {
	s := Snapshot{Symbol: symbol}
	if t := w.LatestTrade; t != nil {
		s.LatestTradePrice = t.P
		s.LatestTradeSize = int64(t.S)
		if !t.T.IsZero() {
			ts := t.T.UTC()
			s.LatestTradeTimestamp = &ts
		}
	}
	if q := w.LatestQuote; q != nil {
		s.AskPrice = q.AP
		s.BidPrice = q.BP
		if !q.T.IsZero() {
			ts := q.T.UTC()
			s.LatestQuoteTimestamp = &ts
		}
	}
	if p := w.PrevDailyBar; p != nil {
		s.PrevDailyClose = p.C
	}
	return s
}
