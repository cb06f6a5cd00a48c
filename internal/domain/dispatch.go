package domain

import "time"

// Stage is one of the four customer-facing delivery states, in order.
type Stage string

const (
	StageReceived  Stage = "received"
	StagePreparing Stage = "preparing"
	StageShipped   Stage = "shipped"
	StageDelivered Stage = "delivered"
)

// Rank orders stages so the displayed stage never regresses.
func (s Stage) Rank() int {
	switch s {
	case StageReceived:
		return 0
	case StagePreparing:
		return 1
	case StageShipped:
		return 2
	case StageDelivered:
		return 3
	}
	return -1
}

// ConfirmationKind describes what the recipient shows to the carrier.
type ConfirmationKind string

const (
	ConfirmationLink  ConfirmationKind = "link"
	ConfirmationToken ConfirmationKind = "token"
	ConfirmationCode  ConfirmationKind = "code"
)

type Confirmation struct {
	Kind  ConfirmationKind `json:"kind"`
	Value string           `json:"value"`
	Path  string           `json:"path"`
}

// Timeline is the value published to dispatch subscribers. Canceled is an
// out-of-band flag: the stage stays at the last stage seen before cancellation.
type Timeline struct {
	OrderID       string        `json:"order_id"`
	FulfillmentID string        `json:"fulfillment_id"`
	Stage         Stage         `json:"stage"`
	Canceled      bool          `json:"canceled"`
	RawStatus     string        `json:"raw_status,omitempty"`
	Confirmation  *Confirmation `json:"confirmation,omitempty"`
	Err           string        `json:"error,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Terminal reports whether polling for this timeline has finished.
func (t Timeline) Terminal() bool {
	return t.Stage == StageDelivered || t.Canceled
}
