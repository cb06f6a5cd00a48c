package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/domain"
)

type scriptedSource struct {
	mu        sync.Mutex
	script    []*backend.Dispatch
	calls     int
	confirmed string
}

func (s *scriptedSource) GetDispatch(ctx context.Context, orderID, fulfillmentID string) (*backend.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	if s.script[i] == nil {
		return nil, domain.ErrNotFound
	}
	return s.script[i], nil
}

func (s *scriptedSource) ConfirmDelivery(ctx context.Context, orderID, fulfillmentID, token string) error {
	s.confirmed = token
	return nil
}

func (s *scriptedSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memSnapshots struct {
	mu    sync.Mutex
	saved []domain.Timeline
	byKey map[string]domain.Timeline
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{byKey: make(map[string]domain.Timeline)}
}

func (m *memSnapshots) Get(ctx context.Context, orderID, fulfillmentID string) (*domain.Timeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byKey[orderID+"/"+fulfillmentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memSnapshots) Save(ctx context.Context, t domain.Timeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, t)
	m.byKey[t.OrderID+"/"+t.FulfillmentID] = t
	return nil
}

func (m *memSnapshots) stages() []domain.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Stage, 0, len(m.saved))
	for _, t := range m.saved {
		out = append(out, t.Stage)
	}
	return out
}

func status(s string, payload map[string]any) *backend.Dispatch {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = s
	return &backend.Dispatch{Status: s, Payload: payload}
}

func drain(t *testing.T, sub *Subscription) domain.Timeline {
	t.Helper()
	var last domain.Timeline
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tl, ok := <-sub.C:
			if !ok {
				return last
			}
			last = tl
		case <-timeout:
			t.Fatalf("subscription was not closed")
		}
	}
}

func TestMapPriority(t *testing.T) {
	cases := []struct {
		obs  Observation
		want domain.Stage
	}{
		{Observation{}, domain.StageReceived},
		{Observation{HasFulfillment: true}, domain.StagePreparing},
		{Observation{Status: "BROADCASTED"}, domain.StageShipped},
		{Observation{Status: "awaiting_confirmation"}, domain.StageShipped},
		{Observation{HasFulfillment: true, Shipped: true}, domain.StageShipped},
		{Observation{Status: "in_transit", Delivered: true}, domain.StageDelivered},
		{Observation{Status: "delivered"}, domain.StageDelivered},
	}
	for _, c := range cases {
		if got := Map(c.obs); got != c.want {
			t.Fatalf("Map(%+v) = %s, want %s", c.obs, got, c.want)
		}
	}
}

func TestBareDispatchAnswerIsPreparing(t *testing.T) {
	for _, s := range []string{"preparing", "pending", "created", ""} {
		next := Advance(domain.Timeline{Stage: domain.StageReceived}, status(s, nil), time.Now())
		if next.Stage != domain.StagePreparing {
			t.Fatalf("status %q: expected preparing, got %s", s, next.Stage)
		}
	}
}

func TestObserveReadsFulfillmentTimestamps(t *testing.T) {
	obs := Observe(&backend.Dispatch{Status: "pending", Payload: map[string]any{
		"fulfillments": []any{map[string]any{"shipped_at": "2026-01-02T10:00:00Z", "delivered_at": nil}},
	}})
	if !obs.HasFulfillment || !obs.Shipped || obs.Delivered {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if Map(obs) != domain.StageShipped {
		t.Fatalf("expected shipped")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{"delivered", "Canceled", "cancelled"} {
		if !IsTerminal(s) {
			t.Fatalf("expected %q terminal", s)
		}
	}
	if IsTerminal("in_transit") {
		t.Fatalf("in_transit is not terminal")
	}
}

func TestExtractConfirmationDirectPaths(t *testing.T) {
	c := ExtractConfirmation(map[string]any{
		"qr":     map[string]any{"token": "tok-1"},
		"beacon": map[string]any{"url": "https://beacon.example/b/1"},
	})
	if c == nil || c.Kind != domain.ConfirmationToken || c.Value != "tok-1" || c.Path != "qr.token" {
		t.Fatalf("unexpected confirmation %+v", c)
	}

	c = ExtractConfirmation(map[string]any{
		"beacon": map[string]any{"url": "https://beacon.example/b/1"},
	})
	if c == nil || c.Kind != domain.ConfirmationLink || c.Value != "https://beacon.example/b/1" {
		t.Fatalf("unexpected confirmation %+v", c)
	}
}

func TestExtractConfirmationScan(t *testing.T) {
	payload := map[string]any{
		"shipping_address": map[string]any{"country_code": "bo", "postal_code": "0000"},
		"carrier": map[string]any{
			"steps": []any{
				map[string]any{"label": "handoff"},
				map[string]any{"deliveryPin": 4821},
			},
		},
	}
	c := ExtractConfirmation(payload)
	if c == nil || c.Kind != domain.ConfirmationCode || c.Value != "4821" {
		t.Fatalf("unexpected confirmation %+v", c)
	}
	if c.Path != "carrier.steps[1].deliveryPin" {
		t.Fatalf("unexpected path %s", c.Path)
	}
}

func TestExtractConfirmationPluralKeys(t *testing.T) {
	cases := map[string]domain.ConfirmationKind{
		"delivery_codes": domain.ConfirmationCode,
		"qrCodes":        domain.ConfirmationCode,
		"tokens":         domain.ConfirmationToken,
		"handoff_pins":   domain.ConfirmationCode,
	}
	for key, kind := range cases {
		c := ExtractConfirmation(map[string]any{"carrier": map[string]any{key: "5521"}})
		if c == nil || c.Kind != kind || c.Value != "5521" {
			t.Fatalf("%s: unexpected confirmation %+v", key, c)
		}
	}
}

func TestExtractConfirmationQRLink(t *testing.T) {
	c := ExtractConfirmation(map[string]any{
		"meta": map[string]any{"delivery_qr": "https://carrier.example/qr/9", "qr_note": "not a link"},
	})
	if c == nil || c.Kind != domain.ConfirmationLink || c.Value != "https://carrier.example/qr/9" {
		t.Fatalf("unexpected confirmation %+v", c)
	}
}

func TestExtractConfirmationIgnoresCountryCodeAndShipping(t *testing.T) {
	c := ExtractConfirmation(map[string]any{
		"country_code":    "bo",
		"shipping_total":  1500,
		"shipping_method": "moto",
	})
	if c != nil {
		t.Fatalf("expected no confirmation, got %+v", c)
	}
}

func TestExtractConfirmationCyclicPayloadTerminates(t *testing.T) {
	root := map[string]any{}
	root["self"] = root
	loop := []any{nil}
	loop[0] = loop
	root["loop"] = loop
	root["nested"] = map[string]any{"parent": root}

	done := make(chan *domain.Confirmation, 1)
	go func() { done <- ExtractConfirmation(root) }()
	select {
	case c := <-done:
		if c != nil {
			t.Fatalf("expected nothing, got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatalf("extraction did not terminate")
	}

	root["nested"].(map[string]any)["otp"] = "7788"
	c := ExtractConfirmation(root)
	if c == nil || c.Value != "7788" || c.Path != "nested.otp" {
		t.Fatalf("unexpected confirmation %+v", c)
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	now := time.Now()
	prev := domain.Timeline{Stage: domain.StageShipped}
	next := Advance(prev, status("preparing", nil), now)
	if next.Stage != domain.StageShipped {
		t.Fatalf("stage regressed to %s", next.Stage)
	}
	if next.RawStatus != "preparing" {
		t.Fatalf("raw status not recorded: %q", next.RawStatus)
	}
}

func TestAdvanceCancelFreezesStage(t *testing.T) {
	prev := domain.Timeline{Stage: domain.StagePreparing}
	next := Advance(prev, &backend.Dispatch{Status: "cancelled", Payload: map[string]any{}}, time.Now())
	if !next.Canceled || next.Stage != domain.StagePreparing || !next.Terminal() {
		t.Fatalf("unexpected timeline %+v", next)
	}
	again := Advance(next, status("delivered", nil), time.Now())
	if again.Stage != domain.StagePreparing {
		t.Fatalf("terminal timeline changed: %+v", again)
	}
}

func TestAdvanceSurfacesConfirmationWhileShipped(t *testing.T) {
	next := Advance(domain.Timeline{Stage: domain.StagePreparing}, status("in_transit", map[string]any{"qr": map[string]any{"url": "https://c.example/q"}}), time.Now())
	if next.Confirmation == nil || next.Confirmation.Value != "https://c.example/q" {
		t.Fatalf("expected confirmation, got %+v", next.Confirmation)
	}
	done := Advance(next, status("delivered", nil), time.Now())
	if done.Confirmation != nil {
		t.Fatalf("expected confirmation cleared on delivery")
	}
}

func TestTrackerPollsUntilDelivered(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{
		status("preparing", nil),
		status("broadcasted", nil),
		status("in_transit", nil),
		status("delivered", nil),
		status("delivered", nil),
	}}
	store := newMemSnapshots()
	tracker := NewTracker(source, store, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	sub, err := tracker.Watch(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	last := drain(t, sub)
	if last.Stage != domain.StageDelivered {
		t.Fatalf("expected delivered, got %s", last.Stage)
	}

	want := []domain.Stage{domain.StagePreparing, domain.StageShipped, domain.StageShipped, domain.StageDelivered}
	got := store.stages()
	if len(got) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, got)
		}
	}

	time.Sleep(30 * time.Millisecond)
	if n := source.count(); n != 4 {
		t.Fatalf("expected polling to stop after 4 calls, got %d", n)
	}
	if tracker.Active() != 0 {
		t.Fatalf("expected no active loops")
	}
}

func TestTrackerSharesOneLoopPerPair(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{status("in_transit", nil)}}
	tracker := NewTracker(source, nil, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	a, err := tracker.Watch(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	b, err := tracker.Watch(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if tracker.Active() != 1 {
		t.Fatalf("expected one loop, got %d", tracker.Active())
	}

	select {
	case tl := <-a.C:
		if tl.Stage != domain.StageShipped {
			t.Fatalf("unexpected stage %s", tl.Stage)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update")
	}

	a.Close()
	if tracker.Active() != 1 {
		t.Fatalf("loop stopped while a subscriber remains")
	}
	b.Close()

	deadline := time.Now().Add(time.Second)
	for tracker.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("loop kept running without subscribers")
		}
		time.Sleep(time.Millisecond)
	}
	calls := source.count()
	time.Sleep(30 * time.Millisecond)
	if source.count() != calls {
		t.Fatalf("polling continued after last subscriber left")
	}
}

func TestTrackerResubscribeAfterLastLeaves(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{status("in_transit", nil)}}
	tracker := NewTracker(source, nil, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	for i := 0; i < 20; i++ {
		a, err := tracker.Watch(context.Background(), "order_1", "ful_1")
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		a.Close()

		b, err := tracker.Watch(context.Background(), "order_1", "ful_1")
		if err != nil {
			t.Fatalf("rewatch: %v", err)
		}
		select {
		case tl, ok := <-b.C:
			if !ok {
				t.Fatalf("round %d: subscription closed before any update", i)
			}
			if tl.Stage != domain.StageShipped {
				t.Fatalf("unexpected stage %s", tl.Stage)
			}
		case <-time.After(time.Second):
			t.Fatalf("round %d: no update", i)
		}
		select {
		case _, ok := <-b.C:
			if !ok {
				t.Fatalf("round %d: live subscription was closed", i)
			}
		case <-time.After(20 * time.Millisecond):
		}
		b.Close()
	}
}

func TestTrackerTerminalLoopReleasesSubscription(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{status("delivered", nil)}}
	tracker := NewTracker(source, nil, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	sub, err := tracker.Watch(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	drain(t, sub)
	select {
	case <-sub.done:
	case <-time.After(time.Second):
		t.Fatalf("subscription not released after the loop ended")
	}
}

func TestTrackerStopsWhenContextEnds(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{status("in_transit", nil)}}
	tracker := NewTracker(source, nil, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := tracker.Watch(ctx, "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()
	drain(t, sub)

	deadline := time.Now().Add(time.Second)
	for tracker.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("loop kept running after context end")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTrackerStoredTerminalSnapshotSkipsPolling(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{status("in_transit", nil)}}
	store := newMemSnapshots()
	_ = store.Save(context.Background(), domain.Timeline{OrderID: "order_1", FulfillmentID: "ful_1", Stage: domain.StageDelivered})
	tracker := NewTracker(source, store, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	sub, err := tracker.Watch(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if last := drain(t, sub); last.Stage != domain.StageDelivered {
		t.Fatalf("expected stored delivered snapshot, got %+v", last)
	}
	if source.count() != 0 {
		t.Fatalf("expected no polls, got %d", source.count())
	}
}

func TestTrackerCancellationStopsPolling(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{
		status("preparing", nil),
		{Status: "canceled", Payload: map[string]any{}},
	}}
	tracker := NewTracker(source, nil, 5*time.Millisecond, nil, nil)
	defer tracker.Close()

	sub, err := tracker.Watch(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	last := drain(t, sub)
	if !last.Canceled || last.Stage != domain.StagePreparing {
		t.Fatalf("unexpected final timeline %+v", last)
	}
}

func TestTrackerNotFoundMeansReceived(t *testing.T) {
	source := &scriptedSource{script: []*backend.Dispatch{nil}}
	tracker := NewTracker(source, nil, time.Hour, nil, nil)

	tl, err := tracker.Current(context.Background(), "order_1", "ful_1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if tl.Stage != domain.StageReceived {
		t.Fatalf("expected received, got %s", tl.Stage)
	}
}

func TestTrackerValidation(t *testing.T) {
	tracker := NewTracker(&scriptedSource{}, nil, 0, nil, nil)
	if _, err := tracker.Watch(context.Background(), "", "ful_1"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := tracker.ConfirmDelivery(context.Background(), "order_1", "ful_1", " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestTrackerConfirmDelivery(t *testing.T) {
	source := &scriptedSource{}
	tracker := NewTracker(source, nil, 0, nil, nil)
	if err := tracker.ConfirmDelivery(context.Background(), "order_1", "ful_1", " tok "); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if source.confirmed != "tok" {
		t.Fatalf("unexpected token %q", source.confirmed)
	}
}

func TestTrackerClosedRejectsWatch(t *testing.T) {
	tracker := NewTracker(&scriptedSource{script: []*backend.Dispatch{nil}}, nil, 0, nil, nil)
	tracker.Close()
	if _, err := tracker.Watch(context.Background(), "order_1", "ful_1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
