package domain

// SessionStatus is the lifecycle status of a payment session.
type SessionStatus string

const (
	SessionPending      SessionStatus = "pending"
	SessionRequiresMore SessionStatus = "requires_more"
	SessionAuthorized   SessionStatus = "authorized"
	SessionError        SessionStatus = "error"
)

// Terminal reports whether no further transition is expected.
func (s SessionStatus) Terminal() bool {
	return s == SessionAuthorized || s == SessionError
}

type PaymentCollection struct {
	ID       string           `json:"id"`
	Amount   int64            `json:"amount"`
	Currency string           `json:"currency_code"`
	Sessions []PaymentSession `json:"payment_sessions"`
}

// PaymentSession is the provider-scoped handshake. Data is opaque and holds
// provider material such as a client secret or a QR payload.
type PaymentSession struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	Status     SessionStatus  `json:"status"`
	Amount     int64          `json:"amount"`
	Data       map[string]any `json:"data,omitempty"`
}

// PaymentProvider is one catalog entry available in a region.
type PaymentProvider struct {
	ID string `json:"id"`
}
