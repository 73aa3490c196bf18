package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"searchbuddy/internal/wire"
)

// handleSearch resolves each space-separated term in ?search= to the
// instance hosting it, groups terms by instance address, fans the
// grouped /chatrooms lookups out to those instances, and assembles
// the combined result. Unresolved terms are logged and omitted, never
// surfaced as an error — a partial result beats a failed search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() { s.metrics.ObserveFanout(time.Since(started)) }()
	s.metrics.SearchesTotal.Inc()

	terms := splitTerms(r.URL.Query().Get("search"))
	if len(terms) == 0 {
		writeJSON(w, []wire.GatewayEntry{})
		return
	}

	byAddress := s.resolveTerms(r.Context(), terms)
	entries := s.fanOut(r.Context(), byAddress)

	writeJSON(w, entries)
}

// resolveTerms asks discovery for each term's owning instance,
// concurrently with bounded parallelism, and groups the resolved
// terms by instance address.
func (s *Server) resolveTerms(ctx context.Context, terms []string) map[string][]string {
	var mu sync.Mutex
	byAddress := make(map[string][]string)

	var wg sync.WaitGroup
	for _, term := range terms {
		term := term
		wg.Add(1)
		s.sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-s.sem }()

			inst, err := s.discovery.resolveChatroom(ctx, term)
			if err != nil {
				s.logger.Warn().Err(err).Str("term", term).Msg("discovery lookup failed, omitting term")
				s.metrics.TermsUnresolved.Inc()
				return
			}
			if inst == nil {
				s.logger.Info().Str("term", term).Msg("term has no active binding, omitting")
				s.metrics.TermsUnresolved.Inc()
				return
			}

			s.metrics.TermsResolved.Inc()
			mu.Lock()
			byAddress[inst.Address] = append(byAddress[inst.Address], term)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return byAddress
}

// fanOut POSTs each address's term group to that instance's
// /chatrooms endpoint, concurrently with bounded parallelism, and
// assembles the combined entry list.
func (s *Server) fanOut(ctx context.Context, byAddress map[string][]string) []wire.GatewayEntry {
	var mu sync.Mutex
	var entries []wire.GatewayEntry

	var wg sync.WaitGroup
	for address, terms := range byAddress {
		address, terms := address, terms
		wg.Add(1)
		s.sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-s.sem }()

			resp, err := fetchChatrooms(ctx, s.discovery.http, address, terms)
			if err != nil {
				s.logger.Error().Err(err).Str("address", address).Msg("instance /chatrooms fan-out failed")
				s.metrics.FanoutErrors.Inc()
				return
			}

			local := make([]wire.GatewayEntry, 0, len(terms))
			for _, term := range terms {
				count, ok := resp[term]
				if !ok {
					continue
				}
				local = append(local, wire.GatewayEntry{
					Term:       term,
					ChatroomID: count.ChatroomID,
					NumUsers:   count.NumUsers,
					Online:     true,
					URL:        "ws://" + address + "/ws",
				})
			}

			mu.Lock()
			entries = append(entries, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return entries
}

func splitTerms(raw string) []string {
	fields := strings.Fields(raw)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
