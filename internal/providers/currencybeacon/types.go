package currencybeacon

import (
	"encoding/json"
	"time"
)

// DateLayout is the date format the API accepts and returns
const DateLayout = "2006-01-02"

// Currency types accepted by Currencies
const (
	TypeFiat   = "fiat"
	TypeCrypto = "crypto"
)

// Rate is one base/target exchange rate
type Rate struct {
	Base      string    `json:"base_currency"`
	Target    string    `json:"target_currency"`
	Rate      float64   `json:"rate"`
	Date      string    `json:"rate_date"`
	Timestamp time.Time `json:"rate_timestamp"`
}

// Conversion is the result of converting an amount between two currencies
type Conversion struct {
	From            string    `json:"from_currency"`
	To              string    `json:"to_currency"`
	Amount          float64   `json:"amount"`
	ConvertedAmount float64   `json:"converted_amount"`
	Rate            float64   `json:"rate"`
	Timestamp       time.Time `json:"rate_timestamp"`
}

// Currency describes one supported currency
type Currency struct {
	Code      string `json:"currency_code"`
	Name      string `json:"currency_name"`
	ShortCode string `json:"short_code"`
	Symbol    string `json:"symbol"`
}

// RatesQuery selects rates for one base currency. Empty Symbols means every
// available target.
type RatesQuery struct {
	Base    string   `json:"base" validate:"required,alphanum,min=2,max=10"`
	Symbols []string `json:"symbols" validate:"omitempty,dive,required,alphanum,min=2,max=10"`
}

// ConvertQuery converts Amount from one currency to another
type ConvertQuery struct {
	From   string  `json:"from" validate:"required,alphanum,min=2,max=10"`
	To     string  `json:"to" validate:"required,alphanum,min=2,max=10"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

type meta struct {
	Code          int    `json:"code"`
	LastUpdatedAt string `json:"last_updated_at"`
}

type ratesEnvelope struct {
	Meta     meta `json:"meta"`
	Response struct {
		Base  string             `json:"base"`
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	} `json:"response"`
}

type convertEnvelope struct {
	Meta     meta `json:"meta"`
	Response struct {
		Value float64 `json:"value"`
	} `json:"response"`
}

type currenciesEnvelope struct {
	Response []struct {
		ID        flexString `json:"id"`
		Name      string     `json:"name"`
		ShortCode string     `json:"short_code"`
		Symbol    string     `json:"symbol"`
	} `json:"response"`
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
