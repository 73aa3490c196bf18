package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"searchbuddy/internal/config"
	"searchbuddy/internal/wire"
)

// fakeDiscovery answers /chatroom for a fixed set of terms, routing
// all of them to the single fakeInstance address.
func fakeDiscovery(t *testing.T, instanceAddr string, known map[string]int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.ChatroomRequest
		json.NewDecoder(r.Body).Decode(&req)

		id, ok := known[req.Term]
		if !ok {
			json.NewEncoder(w).Encode(wire.ChatroomResponse{Instance: nil})
			return
		}
		json.NewEncoder(w).Encode(wire.ChatroomResponse{
			Instance: &wire.Instance{InstanceID: id, Address: instanceAddr},
		})
	}))
}

// fakeInstance answers /chatrooms with a fixed user count per term.
func fakeInstance(t *testing.T, counts map[string]int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var terms wire.ChatroomsRequest
		json.NewDecoder(r.Body).Decode(&terms)

		resp := make(wire.ChatroomsResponse, len(terms))
		for _, term := range terms {
			resp[term] = wire.ChatroomCount{ChatroomID: 1, NumUsers: counts[term]}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func stripScheme(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '/' && i+1 < len(url) && url[i+1] == '/' {
			return url[i+2:]
		}
	}
	return url
}

func TestSearchAssemblesEntriesForResolvedTerms(t *testing.T) {
	instance := fakeInstance(t, map[string]int32{"go": 3, "zig": 1})
	defer instance.Close()

	instanceAddr := stripScheme(instance.URL)
	discovery := fakeDiscovery(t, instanceAddr, map[string]int32{"go": 10, "zig": 20})
	defer discovery.Close()

	s := New(&config.GatewayConfig{
		ListenAddress:    "127.0.0.1:0",
		DiscoveryAddress: discovery.URL,
		FanoutWorkers:    4,
		RequestTimeout:   2 * time.Second,
		CORSOrigins:      "*",
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/chatrooms?search=go+zig", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entries []wire.GatewayEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	byTerm := map[string]wire.GatewayEntry{}
	for _, e := range entries {
		byTerm[e.Term] = e
	}
	if byTerm["go"].NumUsers != 3 || !byTerm["go"].Online {
		t.Fatalf("unexpected go entry: %+v", byTerm["go"])
	}
	if byTerm["zig"].NumUsers != 1 {
		t.Fatalf("unexpected zig entry: %+v", byTerm["zig"])
	}
}

func TestSearchOmitsUnresolvedTerms(t *testing.T) {
	discovery := fakeDiscovery(t, "unused:0", map[string]int32{"go": 10})
	defer discovery.Close()

	s := New(&config.GatewayConfig{
		ListenAddress:    "127.0.0.1:0",
		DiscoveryAddress: discovery.URL,
		FanoutWorkers:    4,
		RequestTimeout:   2 * time.Second,
		CORSOrigins:      "*",
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/chatrooms?search=nonexistent", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var entries []wire.GatewayEntry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 0 {
		t.Fatalf("expected no entries for unresolved term, got %+v", entries)
	}
}

func TestSearchEmptyQueryReturnsEmptyArray(t *testing.T) {
	s := New(&config.GatewayConfig{
		ListenAddress:    "127.0.0.1:0",
		DiscoveryAddress: "http://127.0.0.1:0",
		FanoutWorkers:    4,
		RequestTimeout:   2 * time.Second,
		CORSOrigins:      "*",
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/chatrooms", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s := New(&config.GatewayConfig{
		ListenAddress:    "127.0.0.1:0",
		DiscoveryAddress: "http://127.0.0.1:0",
		FanoutWorkers:    4,
		RequestTimeout:   2 * time.Second,
		CORSOrigins:      "*",
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
