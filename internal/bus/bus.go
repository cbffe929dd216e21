// Package bus implements the live update bus: a fan-out notification channel
// telling subscribers that a scoped set of conversation records changed.
// Events carry scope only, never row data; consumers are expected to refetch.
package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"wassist-backend/internal/logging"
)

// pgChannel is the Postgres NOTIFY channel shared by all server instances.
const pgChannel = "wassist_changes"

// Event kinds published on the bus.
const (
	KindMessages = "messages"
	KindRules    = "rules"
)

// Event identifies a scope whose records changed.
type Event struct {
	OrganizationID uuid.UUID `json:"org"`
	Intent         string    `json:"intent"`
	Kind           string    `json:"kind"`
}

// envelope is the NOTIFY payload; Node lets instances skip their own echoes.
type envelope struct {
	Node  uuid.UUID `json:"node"`
	Event Event     `json:"event"`
}

type subscriber struct {
	org    uuid.UUID
	intent string // empty matches every intent
	ch     chan Event
}

// Bus fans change events out to in-process subscribers. When attached to a
// pgx pool it also relays events through Postgres LISTEN/NOTIFY so that every
// server instance converges on the same view.
type Bus struct {
	log    *logging.Logger
	pool   *pgxpool.Pool
	nodeID uuid.UUID

	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a bus. pool may be nil for single-process use (tests); with a
// pool, a listener goroutine relays remote notifications into local fan-out.
func New(pool *pgxpool.Pool, log *logging.Logger) *Bus {
	b := &Bus{
		log:    log.Component("bus"),
		pool:   pool,
		nodeID: uuid.New(),
		subs:   make(map[int]*subscriber),
		done:   make(chan struct{}),
	}
	if pool != nil {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		go b.listen(ctx)
	} else {
		close(b.done)
	}
	return b
}

// Subscribe registers interest in changes for one org, optionally narrowed to
// a single intent. The returned cancel func must be called on unmount;
// leaking subscriptions is how duplicate-refresh bugs start.
func (b *Bus) Subscribe(orgID uuid.UUID, intent string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{org: orgID, intent: intent, ch: make(chan Event, 8)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish fans the event out locally and, when a pool is attached, relays it
// to other instances via pg_notify. Local delivery never blocks the caller:
// a full subscriber buffer drops the oldest pending event.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.fanout(ev)

	if b.pool == nil {
		return
	}
	payload, err := json.Marshal(envelope{Node: b.nodeID, Event: ev})
	if err != nil {
		b.log.Error().Err(err).Msg("marshal bus envelope")
		return
	}
	if _, err := b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", pgChannel, string(payload)); err != nil {
		// Remote fan-out is best effort; local subscribers were served.
		b.log.Warn().Err(err).Msg("pg_notify failed")
	}
}

func (b *Bus) fanout(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.org != ev.OrganizationID {
			continue
		}
		if sub.intent != "" && sub.intent != ev.Intent {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Drop the oldest pending event; the newest wins.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// listen holds a dedicated connection on LISTEN and re-injects notifications
// from other nodes. Reconnects with backoff on connection loss.
func (b *Bus) listen(ctx context.Context) {
	defer close(b.done)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := b.listenOnce(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn().Err(err).Msg("bus listener disconnected, retrying")
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bus) listenOnce(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal([]byte(n.Payload), &env); err != nil {
			b.log.Warn().Err(err).Msg("malformed bus payload")
			continue
		}
		if env.Node == b.nodeID {
			continue // already fanned out at publish time
		}
		b.fanout(env.Event)
	}
}

// Close stops the listener and closes all subscriber channels.
func (b *Bus) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
