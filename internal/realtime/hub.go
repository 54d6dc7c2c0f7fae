package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/metrics"
)

var (
	ErrHubDisposed     = errors.New("REALTIME_HUB_DISPOSED")
	ErrSubscribeFailed = errors.New("REALTIME_SUBSCRIBE_FAILED")
)

const channelKeyPrefix = "notifications_"

// Event is what subscribers receive for every watched insert.
type Event struct {
	Table      string          `json:"table"`
	Channel    string          `json:"channel"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

type Callback func(Event)

// Channel is one user's subscription. Done is closed when the channel is torn
// down, either explicitly or because the same user subscribed again.
type Channel struct {
	key    string
	userID string
	role   string
	teamID string
	cb     Callback

	done chan struct{}
	once sync.Once
}

func (c *Channel) Key() string           { return c.key }
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) close() {
	c.once.Do(func() { close(c.done) })
}

// ChannelKey is the key of userID's channel.
func ChannelKey(userID string) string {
	return channelKeyPrefix + userID
}

// Hub owns every realtime channel of the process. A user has at most one
// active channel.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*Channel
	hook     func(Event)
	disposed bool

	feed   ChangeFeed
	stop   chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
	logger logger.Logger
}

// NewHub starts dispatching feed events. A nil feed yields a hub that only
// manages channels.
func NewHub(feed ChangeFeed, log logger.Logger) *Hub {
	h := &Hub{
		channels: make(map[string]*Channel),
		feed:     feed,
		stop:     make(chan struct{}),
		now:      time.Now,
		logger:   log.WithFields(map[string]interface{}{"component": "realtime-hub"}),
	}
	if feed != nil {
		h.wg.Add(1)
		go h.run()
	}
	return h
}

// SetHook registers a function called once per dispatched event, before the
// subscriber callbacks.
func (h *Hub) SetHook(hook func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hook = hook
}

// Subscribe opens a channel for userID and returns its key. Any previous
// channel of the same user is torn down first.
func (h *Hub) Subscribe(userID, role, teamID string, cb Callback) (string, error) {
	ch, err := h.Watch(userID, role, teamID, cb)
	if err != nil {
		return "", err
	}
	return ch.key, nil
}

// Watch is Subscribe returning the channel handle.
func (h *Hub) Watch(userID, role, teamID string, cb Callback) (*Channel, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrSubscribeFailed)
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: callback is required", ErrSubscribeFailed)
	}

	ch := &Channel{
		key:    ChannelKey(userID),
		userID: userID,
		role:   role,
		teamID: teamID,
		cb:     cb,
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil, ErrHubDisposed
	}
	if prev, ok := h.channels[ch.key]; ok {
		prev.close()
		h.logger.Debug("replacing realtime channel", map[string]interface{}{"key": ch.key})
	}
	h.channels[ch.key] = ch
	metrics.RealtimeChannelsActive.Set(float64(len(h.channels)))

	h.logger.Info("realtime channel subscribed", map[string]interface{}{
		"key":    ch.key,
		"role":   role,
		"teamId": teamID,
	})
	return ch, nil
}

// Unsubscribe tears down the channel with key. It reports whether a channel
// was removed.
func (h *Hub) Unsubscribe(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[key]
	if !ok {
		return false
	}
	h.remove(ch)
	return true
}

// Release tears down ch only if it is still the user's active channel.
func (h *Hub) Release(ch *Channel) bool {
	if ch == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[ch.key] != ch {
		return false
	}
	h.remove(ch)
	return true
}

// remove must be called with h.mu held.
func (h *Hub) remove(ch *Channel) {
	delete(h.channels, ch.key)
	ch.close()
	metrics.RealtimeChannelsActive.Set(float64(len(h.channels)))
	h.logger.Debug("realtime channel removed", map[string]interface{}{"key": ch.key})
}

func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

// Dispose tears down every channel, closes the feed and waits for the
// dispatcher. It is safe to call more than once.
func (h *Hub) Dispose() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	for _, ch := range h.channels {
		ch.close()
	}
	h.channels = make(map[string]*Channel)
	metrics.RealtimeChannelsActive.Set(0)
	close(h.stop)
	h.mu.Unlock()

	if h.feed != nil {
		if err := h.feed.Close(); err != nil {
			h.logger.Warn("closing change feed failed", map[string]interface{}{"error": err})
		}
	}
	h.wg.Wait()
	h.logger.Info("realtime hub disposed", nil)
}

func (h *Hub) run() {
	defer h.wg.Done()
	events := h.feed.Events()
	for {
		select {
		case <-h.stop:
			return
		case raw, ok := <-events:
			if !ok {
				h.logger.Warn("change feed closed", nil)
				return
			}
			h.Dispatch(raw)
		}
	}
}

// Dispatch fans a change out to every channel. Non-insert events and tables
// outside WatchedTables are dropped.
func (h *Hub) Dispatch(raw RawEvent) int {
	if !isWatched(raw) {
		return 0
	}
	metrics.RealtimeEventsTotal.WithLabelValues(raw.Table).Inc()

	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return 0
	}
	hook := h.hook
	targets := make([]*Channel, 0, len(h.channels))
	for _, ch := range h.channels {
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	received := h.now()
	if hook != nil {
		h.safeCall("hook", func() {
			hook(Event{Table: raw.Table, Payload: raw.Payload, ReceivedAt: received})
		})
	}
	for _, ch := range targets {
		ev := Event{Table: raw.Table, Channel: ch.key, Payload: raw.Payload, ReceivedAt: received}
		cb := ch.cb
		h.safeCall(ch.key, func() { cb(ev) })
	}
	return len(targets)
}

func (h *Hub) safeCall(target string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("realtime callback panicked", map[string]interface{}{
				"target": target,
				"panic":  fmt.Sprint(r),
			})
		}
	}()
	fn()
}
