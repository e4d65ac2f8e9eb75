// Package push maintains the persistent server-push connection to the engine
// and applies incoming position and rate deltas to the in-memory stores. The
// channel is receive-only; reconnection uses linear backoff with a bounded
// attempt count and a terminal gave-up state.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/notify"
	"github.com/joasgard/basisdesk/internal/sched"
	"github.com/joasgard/basisdesk/internal/store"
)

// State is the connection state of the push channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateGaveUp       State = "gave_up"
)

const (
	// MaxAttempts is the number of consecutive connection errors tolerated
	// before the channel gives up.
	MaxAttempts = 5

	// BaseDelay is the unit of the linear reconnect backoff: the n-th retry
	// waits n × BaseDelay.
	BaseDelay = 3 * time.Second

	reconnectKey = "reconnect"
)

// Transport is one live push connection. The channel closes and discards a
// transport on every error; reconnection always dials a fresh one.
type Transport interface {
	ReadEvent() (domain.PushEvent, error)
	Close() error
}

// DialFunc opens a new transport.
type DialFunc func(ctx context.Context) (Transport, error)

// Channel is the push channel state machine. Invariant: at most one live
// transport and at most one pending reconnect timer exist at any time.
type Channel struct {
	dial      DialFunc
	positions *store.Positions
	rates     *store.Rates
	rateCache domain.RateCache // optional mirror
	center    *notify.Center
	timers    *sched.Timers
	baseDelay time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	attempts  int
	transport Transport
	closed    bool
}

// NewChannel creates a push channel. rateCache may be nil. baseDelay <= 0
// selects BaseDelay.
func NewChannel(dial DialFunc, positions *store.Positions, rates *store.Rates, rateCache domain.RateCache, center *notify.Center, baseDelay time.Duration, logger *slog.Logger) *Channel {
	if baseDelay <= 0 {
		baseDelay = BaseDelay
	}
	return &Channel{
		dial:      dial,
		positions: positions,
		rates:     rates,
		rateCache: rateCache,
		center:    center,
		timers:    sched.NewTimers(),
		baseDelay: baseDelay,
		logger:    logger.With(slog.String("component", "push_channel")),
		state:     StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the push stream and starts the read loop. Connection errors
// feed the reconnect state machine instead of being returned.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	transport, err := c.dial(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "push connect failed", slog.String("error", err.Error()))
		c.connectionLost()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = transport.Close()
		return
	}
	c.transport = transport
	c.state = StateOpen
	c.attempts = 0 // a successful open resets the backoff
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "push channel open")
	go c.readLoop(transport)
}

// Close tears the channel down: the pending reconnect timer is cancelled and
// the transport closed. Safe to call from any state, repeatedly.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateDisconnected
	transport := c.transport
	c.transport = nil
	c.mu.Unlock()

	c.timers.CancelAll()
	if transport != nil {
		_ = transport.Close()
	}
}

// readLoop drains events from one transport until it errors.
func (c *Channel) readLoop(transport Transport) {
	for {
		evt, err := transport.ReadEvent()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			c.logger.Warn("push read failed", slog.String("error", err.Error()))
			c.connectionLost()
			return
		}
		c.dispatch(evt)
	}
}

// connectionLost closes the transport and either schedules a linear-backoff
// reconnect or, after MaxAttempts consecutive errors, transitions to the
// terminal gave-up state with a single persistent notification.
func (c *Channel) connectionLost() {
	c.mu.Lock()
	if c.closed || c.state == StateGaveUp {
		c.mu.Unlock()
		return
	}
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
	c.attempts++
	attempts := c.attempts
	if attempts >= MaxAttempts {
		c.state = StateGaveUp
		c.mu.Unlock()
		c.logger.Error("push channel gave up", slog.Int("attempts", attempts))
		c.center.Push(context.Background(), notify.ChannelGaveUp())
		return
	}
	c.state = StateReconnecting
	c.mu.Unlock()

	delay := time.Duration(attempts) * c.baseDelay
	c.logger.Info("push reconnect scheduled",
		slog.Int("attempt", attempts),
		slog.Duration("delay", delay),
	)
	c.timers.AfterFunc(reconnectKey, delay, func() {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.Connect(context.Background())
	})
}

// dispatch routes one push event by its type tag. Unknown and error events
// are logged and dropped; they never crash the channel.
func (c *Channel) dispatch(evt domain.PushEvent) {
	ctx := context.Background()

	switch evt.Type {
	case domain.PushEventPositionUpdate:
		var data domain.PositionUpdateData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			c.logger.Warn("malformed position update", slog.String("error", err.Error()))
			return
		}
		if data.ID == "" {
			c.logger.Warn("position update without id")
			return
		}
		c.applyPositionUpdate(data)

	case domain.PushEventRateUpdate:
		var data domain.RateUpdateData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			c.logger.Warn("malformed rate update", slog.String("error", err.Error()))
			return
		}
		rate := domain.Rate{
			Asset:      data.Asset,
			MarkPrice:  data.MarkPrice,
			FundingAPR: data.FundingAPR,
			UpdatedAt:  evt.Timestamp,
		}
		c.rates.Set(rate)
		if c.rateCache != nil {
			cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := c.rateCache.SetRate(cacheCtx, rate); err != nil {
				c.logger.Warn("rate cache write failed",
					slog.String("asset", rate.Asset),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}

	case domain.PushEventConnected:
		c.logger.Info("push stream confirmed", slog.Time("ts", evt.Timestamp))

	case domain.PushEventError:
		c.logger.Warn("engine pushed error event", slog.String("data", string(evt.Data)))

	default:
		c.logger.Warn("unknown push event type", slog.String("type", string(evt.Type)))
	}
}

// applyPositionUpdate merges a delta into the store, creating the position
// when the push stream sees it before the job tracker does.
func (c *Channel) applyPositionUpdate(data domain.PositionUpdateData) {
	patch := data.Patch()
	err := c.positions.Update(data.ID, patch)
	if err == nil {
		return
	}
	pos := domain.Position{ID: data.ID, CreatedAt: time.Now().UTC()}
	patch.Apply(&pos)
	if addErr := c.positions.Add(pos); addErr != nil {
		// Lost the race with a concurrent writer; retry as a plain update.
		_ = c.positions.Update(data.ID, patch)
	}
}
