package dispatch

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/metrics"
)

const DefaultInterval = 3 * time.Second

// subscriberBuffer is how many unread timelines a subscriber may lag
// before older ones are dropped in favor of the newest.
const subscriberBuffer = 16

type dispatchSource interface {
	GetDispatch(ctx context.Context, orderID, fulfillmentID string) (*backend.Dispatch, error)
	ConfirmDelivery(ctx context.Context, orderID, fulfillmentID, token string) error
}

type snapshotStore interface {
	Get(ctx context.Context, orderID, fulfillmentID string) (*domain.Timeline, error)
	Save(ctx context.Context, t domain.Timeline) error
}

type watchKey struct {
	orderID       string
	fulfillmentID string
}

type subscriber struct {
	ch   chan domain.Timeline
	done chan struct{}
}

func (s *subscriber) end() {
	close(s.ch)
	close(s.done)
}

type watch struct {
	key    watchKey
	cancel context.CancelFunc
	subs   map[int]*subscriber
	nextID int
	last   domain.Timeline
	seen   bool
}

// Tracker runs one polling loop per (order, fulfillment) pair and fans the
// resulting timeline out to every subscriber of that pair.
type Tracker struct {
	source   dispatchSource
	store    snapshotStore
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	watches map[watchKey]*watch
	running int
	wg      sync.WaitGroup
	closed  bool
}

// NewTracker builds a tracker. store, m and logger may be nil; a
// non-positive interval uses DefaultInterval.
func NewTracker(source dispatchSource, store snapshotStore, interval time.Duration, m *metrics.Metrics, logger *log.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Tracker{
		source:   source,
		store:    store,
		interval: interval,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		watches:  make(map[watchKey]*watch),
	}
}

// Subscription delivers timeline updates until the pair reaches a terminal
// state or Close is called. C is closed in both cases.
type Subscription struct {
	C <-chan domain.Timeline

	once  sync.Once
	close func()
	done  <-chan struct{}
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.close != nil {
			s.close()
		}
	})
}

var ErrClosed = errors.New("dispatch tracker closed")

func validKey(orderID, fulfillmentID string) (watchKey, error) {
	key := watchKey{orderID: strings.TrimSpace(orderID), fulfillmentID: strings.TrimSpace(fulfillmentID)}
	if key.orderID == "" || key.fulfillmentID == "" {
		return key, domain.Invalid("order id and fulfillment id are required")
	}
	return key, nil
}

// Watch subscribes to the timeline of one fulfillment. The subscription is
// closed when ctx is done. A pair whose stored snapshot is already terminal
// yields that snapshot and no polling starts.
func (t *Tracker) Watch(ctx context.Context, orderID, fulfillmentID string) (*Subscription, error) {
	key, err := validKey(orderID, fulfillmentID)
	if err != nil {
		return nil, err
	}

	if sub, ok, err := t.join(key); err != nil || ok {
		return t.bind(ctx, sub), err
	}

	stored, err := t.loadSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored != nil && stored.Terminal() {
		ch := make(chan domain.Timeline, 1)
		ch <- *stored
		close(ch)
		return &Subscription{C: ch}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	w, ok := t.watches[key]
	if !ok {
		w = t.start(key, stored)
	}
	return t.bind(ctx, t.subscribeLocked(w)), nil
}

// join attaches to a running loop, if any.
func (t *Tracker) join(key watchKey) (*Subscription, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false, ErrClosed
	}
	w, ok := t.watches[key]
	if !ok {
		return nil, false, nil
	}
	return t.subscribeLocked(w), true, nil
}

func (t *Tracker) bind(ctx context.Context, sub *Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

func (t *Tracker) loadSnapshot(ctx context.Context, key watchKey) (*domain.Timeline, error) {
	if t.store == nil {
		return nil, nil
	}
	stored, err := t.store.Get(ctx, key.orderID, key.fulfillmentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// start launches the loop for key. Caller holds t.mu.
func (t *Tracker) start(key watchKey, stored *domain.Timeline) *watch {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		key:    key,
		cancel: cancel,
		subs:   make(map[int]*subscriber),
		last: domain.Timeline{
			OrderID:       key.orderID,
			FulfillmentID: key.fulfillmentID,
			Stage:         domain.StageReceived,
		},
	}
	if stored != nil {
		w.last = *stored
		w.seen = true
	}
	t.watches[key] = w
	t.running++
	t.wg.Add(1)
	t.metrics.TrackerStarted()
	t.logger.Printf("dispatch: tracking started order_id=%s fulfillment_id=%s", key.orderID, key.fulfillmentID)
	go t.run(ctx, w)
	return w
}

// subscribeLocked adds a subscriber to w. Caller holds t.mu.
func (t *Tracker) subscribeLocked(w *watch) *Subscription {
	id := w.nextID
	w.nextID++
	sub := &subscriber{ch: make(chan domain.Timeline, subscriberBuffer), done: make(chan struct{})}
	if w.seen {
		sub.ch <- w.last
	}
	w.subs[id] = sub
	return &Subscription{C: sub.ch, done: sub.done, close: func() { t.unsubscribe(w, id) }}
}

func (t *Tracker) unsubscribe(w *watch, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := w.subs[id]
	if !ok {
		return
	}
	delete(w.subs, id)
	sub.end()
	if len(w.subs) == 0 {
		// A stopping loop must not take new subscribers.
		if t.watches[w.key] == w {
			delete(t.watches, w.key)
		}
		w.cancel()
	}
}

func (t *Tracker) run(ctx context.Context, w *watch) {
	defer t.wg.Done()
	defer t.finish(w)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if t.poll(ctx, w) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// finish drops the loop and closes the remaining subscriptions.
func (t *Tracker) finish(w *watch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watches[w.key] == w {
		delete(t.watches, w.key)
	}
	for id, sub := range w.subs {
		delete(w.subs, id)
		sub.end()
	}
	w.cancel()
	t.running--
	t.metrics.TrackerStopped()
	t.logger.Printf("dispatch: tracking stopped order_id=%s fulfillment_id=%s stage=%s canceled=%t",
		w.key.orderID, w.key.fulfillmentID, w.last.Stage, w.last.Canceled)
}

// poll runs one observation and reports whether the timeline is terminal.
func (t *Tracker) poll(ctx context.Context, w *watch) bool {
	d, err := t.source.GetDispatch(ctx, w.key.orderID, w.key.fulfillmentID)
	if ctx.Err() != nil {
		return false
	}

	t.mu.Lock()
	prev := w.last
	t.mu.Unlock()

	var next domain.Timeline
	switch {
	case errors.Is(err, domain.ErrNotFound):
		next = Advance(prev, nil, t.now())
	case err != nil:
		t.logger.Printf("dispatch: poll failed order_id=%s fulfillment_id=%s err=%v", w.key.orderID, w.key.fulfillmentID, err)
		next = prev
		next.Err = err.Error()
		next.UpdatedAt = t.now()
	default:
		next = Advance(prev, d, t.now())
	}
	t.metrics.DispatchPoll(string(next.Stage))

	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.persist(ctx, next)
	}

	t.mu.Lock()
	changed := !w.seen || !sameTimeline(prev, next)
	w.last = next
	w.seen = true
	if changed {
		for _, sub := range w.subs {
			publish(sub.ch, next)
		}
	}
	t.mu.Unlock()

	return next.Terminal()
}

func (t *Tracker) persist(ctx context.Context, tl domain.Timeline) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, tl); err != nil {
		t.logger.Printf("dispatch: snapshot save failed order_id=%s fulfillment_id=%s err=%v", tl.OrderID, tl.FulfillmentID, err)
	}
}

// publish never blocks: when the subscriber lags, the oldest update goes.
func publish(ch chan domain.Timeline, tl domain.Timeline) {
	for {
		select {
		case ch <- tl:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func sameTimeline(a, b domain.Timeline) bool {
	if a.Stage != b.Stage || a.Canceled != b.Canceled || a.RawStatus != b.RawStatus || a.Err != b.Err {
		return false
	}
	if (a.Confirmation == nil) != (b.Confirmation == nil) {
		return false
	}
	return a.Confirmation == nil || *a.Confirmation == *b.Confirmation
}

// Advance applies one dispatch answer to prev. The stage only moves
// forward, a canceled timeline is frozen, and confirmation data is looked
// for only while the parcel is shipped. A nil answer means no fulfillment
// exists yet.
func Advance(prev domain.Timeline, d *backend.Dispatch, now time.Time) domain.Timeline {
	if prev.Terminal() {
		return prev
	}
	next := prev
	next.Err = ""
	next.UpdatedAt = now
	if next.Stage == "" {
		next.Stage = domain.StageReceived
	}

	obs := Observe(d)
	next.RawStatus = obs.Status
	if obs.Canceled {
		next.Canceled = true
		next.Confirmation = nil
		return next
	}
	if stage := Map(obs); stage.Rank() > next.Stage.Rank() {
		next.Stage = stage
	}
	switch next.Stage {
	case domain.StageShipped:
		if d != nil {
			if c := ExtractConfirmation(d.Payload); c != nil {
				next.Confirmation = c
			}
		}
	case domain.StageDelivered:
		next.Confirmation = nil
	}
	return next
}

// Current returns the latest timeline for a pair without subscribing. A
// running loop answers from memory; otherwise one poll is made on top of
// the stored snapshot.
func (t *Tracker) Current(ctx context.Context, orderID, fulfillmentID string) (*domain.Timeline, error) {
	key, err := validKey(orderID, fulfillmentID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	if w, ok := t.watches[key]; ok && w.seen {
		last := w.last
		t.mu.Unlock()
		return &last, nil
	}
	t.mu.Unlock()

	stored, err := t.loadSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	prev := domain.Timeline{OrderID: key.orderID, FulfillmentID: key.fulfillmentID, Stage: domain.StageReceived}
	if stored != nil {
		if stored.Terminal() {
			return stored, nil
		}
		prev = *stored
	}

	d, err := t.source.GetDispatch(ctx, key.orderID, key.fulfillmentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	next := Advance(prev, d, t.now())
	t.metrics.DispatchPoll(string(next.Stage))
	t.persist(ctx, next)
	return &next, nil
}

// ConfirmDelivery forwards the recipient's confirmation token.
func (t *Tracker) ConfirmDelivery(ctx context.Context, orderID, fulfillmentID, token string) error {
	key, err := validKey(orderID, fulfillmentID)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Invalid("confirmation token is required")
	}
	if err := t.source.ConfirmDelivery(ctx, key.orderID, key.fulfillmentID, token); err != nil {
		return err
	}
	t.logger.Printf("dispatch: delivery confirmed order_id=%s fulfillment_id=%s", key.orderID, key.fulfillmentID)
	return nil
}

// Active reports how many polling loops are running.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Close stops every loop and waits for them to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for _, w := range t.watches {
		w.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}
