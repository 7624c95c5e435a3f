package models

// Request payloads for the market HTTP endpoints.

type QuoteRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
}

type BatchQuoteRequest struct {
	Symbols string `query:"symbols" validate:"required"`
}

type ChartRequest struct {
	Symbol     string `param:"symbol" validate:"required,max=32"`
	Resolution string `param:"resolution" validate:"required,oneof=1 5 15 30 60 D W M"`
	// From and To take unix seconds, RFC3339 or YYYY-MM-DD.
	From       string `query:"from" validate:"max=40"`
	To         string `query:"to" validate:"max=40"`
	SMA        int    `query:"sma" validate:"gte=0,lte=500"`
	RSI        int    `query:"rsi" validate:"gte=0,lte=500"`
}

type NewsRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
	Days   int    `query:"days" default:"7" validate:"gte=1,lte=30"`
}

type FXRequest struct {
	Base string `query:"base" default:"USD" validate:"len=3"`
}

type SessionRequest struct {
	Token string `json:"token" validate:"required"`
}

type BatchQuoteResponse struct {
	Quotes  map[string]Quote `json:"quotes"`
	Missing []string         `json:"missing"`
}
