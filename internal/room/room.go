// Package room implements the chatroom actor: a single goroutine that
// owns a room's connections and serializes every state change to them
// through a mailbox channel.
package room

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"searchbuddy/internal/wire"
)

const mailboxBufferSize = 256

// Connection is the write side of a joined socket. Implementations must
// be safe to call from the room's single event-loop goroutine; they
// need not be safe for concurrent use from elsewhere.
type Connection interface {
	Send(payload []byte) error
}

// Store is the persistence port the room actor needs: recording chats
// and replaying the current day's history. Satisfied by
// internal/persistence's backends.
type Store interface {
	InsertChat(ctx context.Context, chatroomID int32, content string) error
	ChatsSince(ctx context.Context, chatroomID int32, since time.Time) ([]string, error)
}

// Metrics receives room lifecycle signals. Nil-safe: Chatroom falls
// back to a no-op implementation.
type Metrics interface {
	ConnectionOpened(chatroomID int32)
	ConnectionClosed(chatroomID int32)
	MessageBroadcast(chatroomID int32)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened(int32) {}
func (noopMetrics) ConnectionClosed(int32) {}
func (noopMetrics) MessageBroadcast(int32) {}

type event interface{ kind() string }

type connectEvent struct {
	userID int32
	conn   Connection
}

func (connectEvent) kind() string { return "Connect" }

type disconnectEvent struct {
	userID int32
}

func (disconnectEvent) kind() string { return "Disconnect" }

type newMessageEvent struct {
	content string
}

func (newMessageEvent) kind() string { return "NewMessage" }

type chatsFromTodayEvent struct{}

func (chatsFromTodayEvent) kind() string { return "ChatsFromTodayRequest" }

// Chatroom is a single room's event loop: the only goroutine ever
// allowed to touch its connection map, so no locking is needed there.
type Chatroom struct {
	chatroomID int32
	store      Store
	metrics    Metrics
	logger     zerolog.Logger

	mailbox chan event
	count   atomic.Int32

	connections map[int32]Connection
}

// New starts a chatroom's event loop and returns a handle to it. The
// loop runs until the process exits; rooms are never torn down (see
// the registry, which never evicts).
func New(chatroomID int32, store Store, metrics Metrics, logger zerolog.Logger) *Chatroom {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	c := &Chatroom{
		chatroomID:  chatroomID,
		store:       store,
		metrics:     metrics,
		logger:      logger.With().Int32("chatroom_id", chatroomID).Logger(),
		mailbox:     make(chan event, mailboxBufferSize),
		connections: make(map[int32]Connection),
	}

	go c.run()
	return c
}

// ChatroomID returns the room's id.
func (c *Chatroom) ChatroomID() int32 { return c.chatroomID }

// UserCount returns the number of currently-joined connections. Safe
// for concurrent use; it does not go through the mailbox.
func (c *Chatroom) UserCount() int32 { return c.count.Load() }

// Connect enqueues a new connection joining the room.
func (c *Chatroom) Connect(userID int32, conn Connection) {
	c.sendEvent(connectEvent{userID: userID, conn: conn})
}

// Disconnect enqueues a connection leaving the room.
func (c *Chatroom) Disconnect(userID int32) {
	c.sendEvent(disconnectEvent{userID: userID})
}

// NewMessage enqueues a chat to persist and broadcast.
func (c *Chatroom) NewMessage(content string) {
	c.sendEvent(newMessageEvent{content: content})
}

// ChatsFromTodayRequest enqueues a request for today's history,
// broadcast to the whole room once fetched.
func (c *Chatroom) ChatsFromTodayRequest() {
	c.sendEvent(chatsFromTodayEvent{})
}

// sendEvent never blocks the caller. If the mailbox is full the event
// is dropped with a logged warning — rooms have no backpressure
// signal to give callers, and a stalled room should not stall its
// instance's WebSocket reader goroutines.
func (c *Chatroom) sendEvent(ev event) {
	select {
	case c.mailbox <- ev:
	default:
		c.logger.Warn().Str("event_type", ev.kind()).Msg("chatroom mailbox full, dropping event")
	}
}

func (c *Chatroom) run() {
	c.logger.Info().Msg("chatroom event loop started")
	ctx := context.Background()

	for ev := range c.mailbox {
		switch e := ev.(type) {
		case connectEvent:
			c.handleConnect(e)
		case disconnectEvent:
			c.handleDisconnect(e)
		case newMessageEvent:
			c.handleNewMessage(ctx, e)
		case chatsFromTodayEvent:
			c.handleChatsFromToday(ctx)
		}
	}
}

// handleConnect increments the public count, then sends Joined to the
// new user only, before the writer is inserted into the connection map
// — so the joiner never receives its own NewUser notice. If that send
// fails, the connect is rolled back entirely: the count increment is
// reversed and the writer is never added (see the room actor's Connect
// open question).
func (c *Chatroom) handleConnect(e connectEvent) {
	c.count.Add(1)

	joined, err := wire.Joined(c.chatroomID).Marshal()
	if err != nil {
		c.count.Add(-1)
		c.logger.Error().Err(err).Msg("failed to marshal Joined message")
		return
	}

	if err := e.conn.Send(joined); err != nil {
		c.count.Add(-1)
		c.logger.Warn().Err(err).Int32("user_id", e.userID).Msg("Joined send failed, rolling back connect")
		return
	}

	c.deliver(c.encode(wire.NewUser(e.userID)))
	c.connections[e.userID] = e.conn
	c.metrics.ConnectionOpened(c.chatroomID)
}

func (c *Chatroom) handleDisconnect(e disconnectEvent) {
	if _, ok := c.connections[e.userID]; !ok {
		return
	}
	delete(c.connections, e.userID)
	c.count.Add(-1)
	c.metrics.ConnectionClosed(c.chatroomID)
	c.deliver(c.encode(wire.UserDisconnected(e.userID)))
}

func (c *Chatroom) handleNewMessage(ctx context.Context, e newMessageEvent) {
	if err := c.store.InsertChat(ctx, c.chatroomID, e.content); err != nil {
		c.logger.Error().Err(err).Msg("failed to insert chat, broadcasting anyway")
	}
	c.deliver(c.encode(wire.NewMessage(e.content)))
}

// handleChatsFromToday fetches everything since local midnight and
// broadcasts it to the whole room — the request is room-scoped, not
// per-requester. A failed fetch is logged and yields no response
// frame; clients may retry.
func (c *Chatroom) handleChatsFromToday(ctx context.Context) {
	since := localMidnight(time.Now())
	messages, err := c.store.ChatsSince(ctx, c.chatroomID, since)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch chats from today")
		return
	}
	c.deliver(c.encode(wire.ChatsFromTodayResponse(messages)))
}

func (c *Chatroom) encode(msg wire.ServerEnvelope) []byte {
	payload, err := msg.Marshal()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal broadcast message")
		return nil
	}
	return payload
}

// deliver sends payload to every live connection, then cascades
// UserDisconnected notices for any connection whose send failed — and
// those notices can themselves fail, cascading further. Written as a
// queue-driven loop rather than recursion: a round only queues further
// notices when it removes connections, so it terminates after at most
// len(connections)+1 rounds.
func (c *Chatroom) deliver(payload []byte) {
	if payload == nil {
		return
	}
	pending := [][]byte{payload}

	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]

		var failed []int32
		for userID, conn := range c.connections {
			if err := conn.Send(next); err != nil {
				failed = append(failed, userID)
			}
		}
		if len(failed) == 0 {
			c.metrics.MessageBroadcast(c.chatroomID)
			continue
		}

		for _, userID := range failed {
			delete(c.connections, userID)
			c.count.Add(-1)
			c.metrics.ConnectionClosed(c.chatroomID)
			if notice := c.encode(wire.UserDisconnected(userID)); notice != nil {
				pending = append(pending, notice)
			}
		}
		c.metrics.MessageBroadcast(c.chatroomID)
	}
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
