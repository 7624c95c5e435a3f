package models

import "time"

type CompanyProfile struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange,omitempty"`
	Industry  string  `json:"industry,omitempty"`
	Country   string  `json:"country,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	Logo      string  `json:"logo,omitempty"`
	WebURL    string  `json:"weburl,omitempty"`
	MarketCap float64 `json:"market_cap,omitempty"`
	Source    string  `json:"source"`
}

type NewsItem struct {
	ID        int64     `json:"id"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary,omitempty"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Image     string    `json:"image,omitempty"`
	Published time.Time `json:"published"`
}

// FXRates holds units of each currency per one unit of Base.
type FXRates struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}
