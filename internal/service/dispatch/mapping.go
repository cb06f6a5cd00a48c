// Package dispatch maps polled fulfillment dispatch payloads onto the
// four-stage delivery timeline and runs the polling loops behind it.
package dispatch

import (
	"strings"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/domain"
)

// Observation is what the stage mapping reads from one poll.
type Observation struct {
	Status         string
	HasFulfillment bool
	Shipped        bool
	Delivered      bool
	Canceled       bool
}

// Upstream statuses meaning the parcel left the seller.
var shippedStatuses = map[string]bool{
	"broadcasted":           true,
	"accepted":              true,
	"awaiting_confirmation": true,
	"in_transit":            true,
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCanceled reports the canceled status in either spelling.
func IsCanceled(status string) bool {
	s := normalizeStatus(status)
	return s == "canceled" || s == "cancelled"
}

// IsTerminal reports statuses after which polling stops.
func IsTerminal(status string) bool {
	return normalizeStatus(status) == "delivered" || IsCanceled(status)
}

// Map turns an observation into a timeline stage. Checks run in priority
// order: delivered, shipped, preparing, received. Cancellation is not a
// stage and is reported through Observation.Canceled.
func Map(o Observation) domain.Stage {
	status := normalizeStatus(o.Status)
	switch {
	case status == "delivered" || o.Delivered:
		return domain.StageDelivered
	case shippedStatuses[status] || o.Shipped:
		return domain.StageShipped
	case o.HasFulfillment:
		return domain.StagePreparing
	}
	return domain.StageReceived
}

// Observe reduces a dispatch answer. The resource is keyed by fulfillment, so
// any answer proves one exists; a nil answer means none does yet.
func Observe(d *backend.Dispatch) Observation {
	if d == nil {
		return Observation{}
	}
	o := Observation{Status: d.Status, HasFulfillment: true, Canceled: IsCanceled(d.Status)}
	o.mergeTimestamps(d.Payload)

	var records []any
	if f, ok := d.Payload["fulfillment"]; ok {
		records = append(records, f)
	}
	if fs, ok := d.Payload["fulfillments"].([]any); ok {
		records = append(records, fs...)
	}
	for _, r := range records {
		m, ok := r.(map[string]any)
		if !ok || m == nil {
			continue
		}
		o.mergeTimestamps(m)
	}
	return o
}

func (o *Observation) mergeTimestamps(m map[string]any) {
	if present(m["delivered_at"]) {
		o.Delivered = true
	}
	if present(m["shipped_at"]) {
		o.Shipped = true
	}
	if present(m["canceled_at"]) {
		o.Canceled = true
	}
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	}
	return true
}
