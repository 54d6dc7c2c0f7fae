package realtime

import (
	"fmt"
	"sync"
	"time"

	"teamhub-notifications/internal/common/logger"

	"github.com/lib/pq"
)

// NotifyChannel is the LISTEN channel the installed triggers notify on.
const NotifyChannel = "notification_changes"

type PGListenerConfig struct {
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	BufferSize           int
}

// PGFeed is a ChangeFeed over Postgres LISTEN/NOTIFY. The underlying
// pq.Listener reconnects on its own with backoff between the configured
// intervals.
type PGFeed struct {
	listener *pq.Listener
	config   PGListenerConfig
	events   chan RawEvent
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	logger   logger.Logger
}

func NewPGFeed(dsn string, cfg PGListenerConfig, log logger.Logger) (*PGFeed, error) {
	if cfg.MinReconnectInterval <= 0 {
		cfg.MinReconnectInterval = time.Second
	}
	if cfg.MaxReconnectInterval < cfg.MinReconnectInterval {
		cfg.MaxReconnectInterval = time.Minute
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	f := &PGFeed{
		config: cfg,
		events: make(chan RawEvent, cfg.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: log.WithFields(map[string]interface{}{"component": "pg-change-feed"}),
	}

	f.listener = pq.NewListener(dsn, cfg.MinReconnectInterval, cfg.MaxReconnectInterval, f.onListenerEvent)
	if err := f.listener.Listen(NotifyChannel); err != nil {
		f.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	go f.run()
	f.logger.Info("listening for changes", map[string]interface{}{"channel": NotifyChannel})
	return f, nil
}

func (f *PGFeed) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.logger.Debug("change listener connected", nil)
	case pq.ListenerEventDisconnected:
		f.logger.Warn("change listener disconnected", map[string]interface{}{"error": err})
	case pq.ListenerEventReconnected:
		f.logger.Info("change listener reconnected", nil)
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Warn("change listener connection attempt failed", map[string]interface{}{"error": err})
	}
}

func (f *PGFeed) Events() <-chan RawEvent {
	return f.events
}

func (f *PGFeed) run() {
	defer close(f.done)
	defer close(f.events)

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// sent after a reconnect; notifications may have been missed
				f.logger.Info("change listener resynchronised", nil)
				continue
			}
			ev, err := ParseNotification(n.Extra)
			if err != nil {
				f.logger.Warn("dropping malformed change notification", map[string]interface{}{"error": err})
				continue
			}
			select {
			case f.events <- ev:
			case <-f.stop:
				return
			}
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Warn("change listener ping failed", map[string]interface{}{"error": err})
				}
			}()
		}
	}
}

// Close stops the feed and closes the listener connection.
func (f *PGFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.stop)
		<-f.done
		err = f.listener.Close()
	})
	return err
}
