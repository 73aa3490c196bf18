package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"searchbuddy/internal/wire"
)

type memStore struct {
	mu    sync.Mutex
	chats map[int32][]timedChat
	fail  bool
}

type timedChat struct {
	at      time.Time
	content string
}

func newMemStore() *memStore {
	return &memStore{chats: make(map[int32][]timedChat)}
}

func (s *memStore) InsertChat(ctx context.Context, chatroomID int32, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("insert failed")
	}
	s.chats[chatroomID] = append(s.chats[chatroomID], timedChat{at: time.Now(), content: content})
	return nil
}

func (s *memStore) ChatsSince(ctx context.Context, chatroomID int32, since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("query failed")
	}
	var out []string
	for _, c := range s.chats[chatroomID] {
		if !c.at.Before(since) {
			out = append(out, c.content)
		}
	}
	return out, nil
}

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	failing bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, payload)
	return nil
}

func (f *fakeConn) types(t *testing.T) []wire.ServerMessageType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wire.ServerMessageType
	for _, frame := range f.frames {
		var env wire.ServerEnvelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		out = append(out, env.Type)
	}
	return out
}

func waitForCount(t *testing.T, c *Chatroom, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.UserCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("UserCount never reached %d, got %d", want, c.UserCount())
}

func drain(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}

func newTestRoom(store Store) *Chatroom {
	return New(42, store, nil, zerolog.Nop())
}

func TestConnectSendsJoinedBeforeInsertingWriter(t *testing.T) {
	c := newTestRoom(newMemStore())
	joiner := &fakeConn{}

	c.Connect(1, joiner)
	waitForCount(t, c, 1)

	drain(t, func() bool { return len(joiner.types(t)) >= 1 })
	types := joiner.types(t)
	if types[0] != wire.ServerJoined {
		t.Fatalf("expected first frame Joined, got %v", types[0])
	}
	for _, typ := range types {
		if typ == wire.ServerNewUser {
			t.Fatalf("joiner should never receive its own NewUser notice, got types %v", types)
		}
	}
}

func TestConnectBroadcastsNewUserToExistingMembers(t *testing.T) {
	c := newTestRoom(newMemStore())
	first := &fakeConn{}
	second := &fakeConn{}

	c.Connect(1, first)
	waitForCount(t, c, 1)
	c.Connect(2, second)
	waitForCount(t, c, 2)

	drain(t, func() bool {
		for _, typ := range first.types(t) {
			if typ == wire.ServerNewUser {
				return true
			}
		}
		return false
	})
}

func TestConnectRollsBackOnFailedJoinedSend(t *testing.T) {
	c := newTestRoom(newMemStore())
	bad := &fakeConn{failing: true}

	c.Connect(1, bad)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := c.UserCount(); got != 0 {
		t.Fatalf("expected rollback to leave count at 0, got %d", got)
	}
}

func TestDisconnectCascadesToAllObservers(t *testing.T) {
	c := newTestRoom(newMemStore())
	a := &fakeConn{}
	b := &fakeConn{}

	c.Connect(1, a)
	waitForCount(t, c, 1)
	c.Connect(2, b)
	waitForCount(t, c, 2)

	c.Disconnect(1)
	waitForCount(t, c, 1)

	drain(t, func() bool {
		for _, typ := range b.types(t) {
			if typ == wire.ServerUserDisconnected {
				return true
			}
		}
		return false
	})
}

func TestBroadcastCascadesThroughFailingConnections(t *testing.T) {
	c := newTestRoom(newMemStore())
	good := &fakeConn{}
	bad := &fakeConn{}

	c.Connect(1, good)
	waitForCount(t, c, 1)
	c.Connect(2, bad)
	waitForCount(t, c, 2)

	bad.mu.Lock()
	bad.failing = true
	bad.mu.Unlock()

	c.NewMessage("hello room")

	drain(t, func() bool {
		for _, typ := range good.types(t) {
			if typ == wire.ServerUserDisconnected {
				return true
			}
		}
		return false
	})
	waitForCount(t, c, 1)
}

func TestNewMessagePersistFailureStillBroadcasts(t *testing.T) {
	store := newMemStore()
	store.fail = true
	c := newTestRoom(store)
	conn := &fakeConn{}

	c.Connect(1, conn)
	waitForCount(t, c, 1)

	c.NewMessage("will not persist")

	drain(t, func() bool {
		for _, typ := range conn.types(t) {
			if typ == wire.ServerNewMessage {
				return true
			}
		}
		return false
	})
}

func TestChatsFromTodayBroadcastsToWholeRoom(t *testing.T) {
	store := newMemStore()
	c := newTestRoom(store)
	a := &fakeConn{}
	b := &fakeConn{}

	c.Connect(1, a)
	waitForCount(t, c, 1)
	c.Connect(2, b)
	waitForCount(t, c, 2)

	c.NewMessage("morning chat")
	drain(t, func() bool {
		for _, typ := range a.types(t) {
			if typ == wire.ServerNewMessage {
				return true
			}
		}
		return false
	})

	c.ChatsFromTodayRequest()

	drain(t, func() bool {
		for _, typ := range b.types(t) {
			if typ == wire.ServerChatsFromTodayResp {
				return true
			}
		}
		return false
	})
}

func TestChatsFromTodayQueryFailureYieldsNoFrame(t *testing.T) {
	store := newMemStore()
	c := newTestRoom(store)
	conn := &fakeConn{}
	c.Connect(1, conn)
	waitForCount(t, c, 1)

	store.mu.Lock()
	store.fail = true
	store.mu.Unlock()

	c.ChatsFromTodayRequest()

	time.Sleep(50 * time.Millisecond)
	for _, typ := range conn.types(t) {
		if typ == wire.ServerChatsFromTodayResp {
			t.Fatal("expected no response frame on query failure")
		}
	}
}

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	reg := NewRegistry(newMemStore(), nil, zerolog.Nop())

	first := reg.GetOrCreate(7)
	second := reg.GetOrCreate(7)
	if first != second {
		t.Fatal("expected the same room instance on repeated GetOrCreate")
	}

	if _, ok := reg.Lookup(8); ok {
		t.Fatal("expected Lookup to report absence before any GetOrCreate(8)")
	}
}

func TestRegistryGetOrCreateConcurrentFirstTouch(t *testing.T) {
	reg := NewRegistry(newMemStore(), nil, zerolog.Nop())

	var wg sync.WaitGroup
	rooms := make([]*Chatroom, 16)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.GetOrCreate(99)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(rooms); i++ {
		if rooms[i] != rooms[0] {
			t.Fatal("concurrent first-touch created more than one room for the same id")
		}
	}
}
