package gateway

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// flexString accepts a JSON string or number; the gateway is not consistent.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexAmount is an amount sent as a string or number. Empty or unparseable
// values decode as not reported instead of failing the whole answer.
type flexAmount struct {
	decimal.NullDecimal
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	a.NullDecimal = decimal.NullDecimal{}
	var raw flexString
	if err := raw.UnmarshalJSON(b); err != nil {
		return nil
	}
	if d, err := decimal.NewFromString(strings.TrimSpace(string(raw))); err == nil {
		a.NullDecimal = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return nil
}

type credentials struct {
	APIKey string `json:"apikey"`
	SiteID string `json:"site_id"`
}

// checkRequest carries either the transaction id or the checkout token.
type checkRequest struct {
	credentials
	TransactionID string `json:"transaction_id,omitempty"`
	Token         string `json:"token,omitempty"`
}

type checkResponse struct {
	Code    flexString `json:"code"`
	Message string     `json:"message"`
	Data    *struct {
		Amount        flexAmount `json:"amount"`
		Currency      string     `json:"currency"`
		Status        string     `json:"status"`
		PaymentMethod string     `json:"payment_method"`
		Description   string     `json:"description"`
	} `json:"data"`
}

type createRequest struct {
	credentials
	TransactionID   string      `json:"transaction_id"`
	Amount          json.Number `json:"amount"`
	Currency        string      `json:"currency"`
	Description     string      `json:"description"`
	NotifyURL       string      `json:"notify_url"`
	ReturnURL       string      `json:"return_url"`
	Channels        string      `json:"channels"`
	CustomerName    string      `json:"customer_name,omitempty"`
	CustomerSurname string      `json:"customer_surname,omitempty"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	Metadata        string      `json:"metadata,omitempty"`
}

type createResponse struct {
	Code        flexString `json:"code"`
	Message     string     `json:"message"`
	Description string     `json:"description"`
	Data        *struct {
		PaymentToken string `json:"payment_token"`
		PaymentURL   string `json:"payment_url"`
	} `json:"data"`
}

const (
	// codeCreated is the creation endpoint's success sentinel.
	codeCreated = "201"
	// codeAccepted is the status endpoint's top-level success sentinel.
	codeAccepted = "00"
)

// Status-check codes meaning the payment is still in progress.
var pendingCodes = map[string]bool{
	"662": true, // WAITING_CUSTOMER_PAYMENT
	"623": true, // WAITING_CUSTOMER_TO_VALIDATE
	"626": true, // WAITING_CUSTOMER_OTP_CODE
}

// Status-check codes that describe our request, not the payment.
var requestErrorCodes = map[string]bool{
	"608": true, // MINIMUM_REQUIRED_FIELDS
	"609": true, // AUTH_NOT_FOUND
	"613": true, // ERROR_SITE_ID_NOTVALID
}

func normalizeDataStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
