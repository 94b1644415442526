package models

// GatewayStatus is the canonical status derived from either status-check response shape.
type GatewayStatus string

const (
	GatewayAccepted GatewayStatus = "ACCEPTED"
	GatewayRefused  GatewayStatus = "REFUSED"
	GatewayPending  GatewayStatus = "PENDING"
)

// StatusResult is what the reconciler returns for one status check.
type StatusResult struct {
	TransactionID string
	Code          string
	Status        GatewayStatus
	StatusDetail  string
	Amount        int64
	// AmountReported is false when the gateway answer carried no amount.
	AmountReported bool
	Currency       string
	Message        string
}

type PaymentRequest struct {
	TransactionID   string
	Amount          int64
	Currency        string
	Description     string
	CustomerName    string
	CustomerSurname string
	CustomerEmail   string
	NotifyURL       string
	ReturnURL       string
	Channels        string
	Metadata        string
}

type PaymentLink struct {
	Token       string
	CheckoutURL string
}

// DisplayStatus is rendered on the return page.
type DisplayStatus struct {
	Title   string
	Message string
	Class   string
}
