package instancehost

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"searchbuddy/internal/channelid"
	"searchbuddy/internal/config"
	"searchbuddy/internal/persistence"
	"searchbuddy/internal/wire"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := persistence.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.InstanceConfig{
		ListenAddress:      "127.0.0.1:0",
		DiscoveryAddress:   "http://127.0.0.1:0",
		MaxConnections:     10000,
		CPURejectThreshold: 99.9,
		ConnectRatePerSec:  1000,
		ConnectBurst:       1000,
		HeartbeatPeriod:    2 * time.Second,
		LeaseTTL:           10 * time.Second,
	}
	return New(cfg, store, zerolog.Nop())
}

func TestHealthzReportsOk(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}

func TestChatroomsMaterializesRoomsWithZeroUsers(t *testing.T) {
	s := newTestServer(t)

	terms := wire.ChatroomsRequest{"go", "zig"}
	payload, _ := json.Marshal(terms)
	req := httptest.NewRequest(http.MethodPost, "/chatrooms", bytes.NewReader(payload))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp wire.ChatroomsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	for _, term := range terms {
		got, ok := resp[term]
		if !ok {
			t.Fatalf("missing term %q in response %+v", term, resp)
		}
		if got.ChatroomID != channelid.ChannelID(term) {
			t.Fatalf("term %q: expected chatroom id %d, got %d", term, channelid.ChannelID(term), got.ChatroomID)
		}
		if got.NumUsers != 0 {
			t.Fatalf("term %q: expected 0 users on a freshly materialized room, got %d", term, got.NumUsers)
		}
	}
}

func TestChatroomsRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/chatrooms", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHeartbeatStopsOnContextCancel(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Heartbeat(ctx); err != nil {
		t.Fatalf("expected Heartbeat to return nil on canceled context, got %v", err)
	}
}
