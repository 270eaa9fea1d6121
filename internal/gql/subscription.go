package gql

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avolkov/docgraph/internal/realtime"
)

const (
	noteEventCreated = "note_created"
	noteEventUpdated = "note_updated"
	noteEventDeleted = "note_deleted"
)

// SubscriptionBus fans out note mutations to connected subscribers. It
// wraps realtime.EventBus rather than reimplementing broadcast plumbing —
// the note domain is just another event source feeding the same
// publish/subscribe mechanics the bus already provides.
type SubscriptionBus struct {
	bus    realtime.EventBus
	logger *slog.Logger
}

func NewSubscriptionBus(logger *slog.Logger, rm *realtime.RealtimeMetrics) *SubscriptionBus {
	return &SubscriptionBus{
		bus:    realtime.NewEventBus(logger, rm),
		logger: logger.With("component", "gql_subscriptions"),
	}
}

func (b *SubscriptionBus) Start(ctx context.Context) error { return b.bus.Start(ctx) }
func (b *SubscriptionBus) Stop(ctx context.Context) error  { return b.bus.Stop(ctx) }

func publishNoteEvent(rc *RequestContext, eventType string, note *Note) {
	if rc.Subscriptions == nil {
		return
	}
	event := *realtime.NewEvent(eventType, map[string]interface{}{
		"id":     note.ID,
		"author": note.Author,
		"title":  note.Title,
	}, "gql_mutation")
	if err := rc.Subscriptions.bus.Publish(event); err != nil {
		rc.Subscriptions.logger.Warn("failed to publish note event", "error", err, "event_type", eventType)
	}
}

// websocketSubscriber adapts a single GraphQL subscription connection to
// realtime.EventSubscriber, filtering to the note events the client asked
// for via the "author" subscription argument.
type websocketSubscriber struct {
	id       string
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	author   string
	send     chan realtime.Event
	logger   *slog.Logger
}

func newWebsocketSubscriber(id string, conn *websocket.Conn, author string, logger *slog.Logger) *websocketSubscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &websocketSubscriber{
		id:     id,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		author: author,
		send:   make(chan realtime.Event, 32),
		logger: logger,
	}
}

func (s *websocketSubscriber) ID() string              { return s.id }
func (s *websocketSubscriber) Context() context.Context { return s.ctx }

func (s *websocketSubscriber) Send(event realtime.Event) error {
	if s.author != "" {
		if author, _ := event.Data["author"].(string); author != s.author {
			return nil
		}
	}
	select {
	case s.send <- event:
		return nil
	default:
		return realtime.ErrEventChannelFull
	}
}

func (s *websocketSubscriber) Close() error {
	s.cancel()
	close(s.send)
	return s.conn.Close()
}

// Run pumps queued events to the websocket connection until the
// connection's context is cancelled or a write fails.
func (s *websocketSubscriber) Run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteJSON(event); err != nil {
				s.logger.Warn("subscription write failed, closing", "subscriber_id", s.id, "error", err)
				s.cancel()
				return
			}
		}
	}
}

// ServeSubscription upgrades r into a websocket subscriber and registers
// it with the bus for the lifetime of the connection.
func (b *SubscriptionBus) ServeSubscription(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, subscriberID, author string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	sub := newWebsocketSubscriber(subscriberID, conn, author, b.logger)
	if err := b.bus.Subscribe(sub); err != nil {
		_ = conn.Close()
		return err
	}
	sub.Run()
	return b.bus.Unsubscribe(sub)
}
