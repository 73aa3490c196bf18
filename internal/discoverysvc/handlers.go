package discoverysvc

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"

	"searchbuddy/internal/persistence"
	"searchbuddy/internal/wire"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListenAddress == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	instanceID := int32(rand.Uint32())
	if err := s.store.UpsertInstance(r.Context(), s.cfg.Region, req.ListenAddress, instanceID); err != nil {
		s.logger.Error().Err(err).Str("address", req.ListenAddress).Msg("register: upsert instance failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	s.metrics.Registrations.Inc()
	s.logger.Info().Int32("instance_id", instanceID).Str("address", req.ListenAddress).Msg("instance registered")

	writeJSON(w, wire.RegisterResponse{InstanceID: instanceID})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req wire.PingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListenAddress == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := s.store.TouchInstance(r.Context(), s.cfg.Region, req.ListenAddress, req.InstanceID, s.cfg.LeaseTTL)
	if err != nil {
		s.logger.Error().Err(err).Int32("instance_id", req.InstanceID).Msg("ping: touch instance failed")
		http.Error(w, "ping failed", http.StatusInternalServerError)
		return
	}

	if !ok {
		s.metrics.PingsExpired.Inc()
		writeJSON(w, wire.PingResponse{PingResult: wire.PingNoLongerActive})
		return
	}

	s.metrics.PingsOk.Inc()
	writeJSON(w, wire.PingResponse{PingResult: wire.PingOk})
}

// handleChatroom resolves a search term to the instance that hosts
// it, sticking to whatever instance first claimed the term as long as
// that instance is still active. See resolveBinding for the full
// read-repair protocol.
func (s *Server) handleChatroom(w http.ResponseWriter, r *http.Request) {
	var req wire.ChatroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Term == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	inst, err := s.resolveBinding(r.Context(), req.Term)
	if err != nil {
		s.logger.Error().Err(err).Str("term", req.Term).Msg("chatroom: resolve binding failed")
		http.Error(w, "resolution failed", http.StatusInternalServerError)
		return
	}
	if inst == nil {
		writeJSON(w, wire.ChatroomResponse{Instance: nil})
		return
	}

	writeJSON(w, wire.ChatroomResponse{Instance: &wire.Instance{
		InstanceID: inst.InstanceID,
		Address:    inst.Address,
	}})
}

// resolveBinding implements the sticky term -> instance protocol:
//
//  1. Read the set of currently active instances.
//  2. Read the existing binding for term, if any.
//  3. If the binding's instance is still active, return it unchanged.
//  4. Otherwise pick a uniformly random active instance, record the
//     new binding (overwriting any stale one; on a race the last write
//     wins), and return whichever binding is stored after the write. If
//     no instance is active, return nil.
func (s *Server) resolveBinding(ctx context.Context, term string) (*persistence.Instance, error) {
	active, err := s.store.ActiveInstances(ctx, s.cfg.Region, s.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}

	binding, hasBinding, err := s.store.GetBinding(ctx, term)
	if err != nil {
		return nil, err
	}

	if hasBinding {
		for _, inst := range active {
			if inst.InstanceID == binding.InstanceID {
				s.metrics.BindingsResolved.Inc()
				return &binding, nil
			}
		}
		s.metrics.BindingsDangling.Inc()
	}

	if len(active) == 0 {
		return nil, nil
	}

	chosen := active[rand.Intn(len(active))]
	if err := s.store.InsertBindingIfAbsent(ctx, term, chosen.Address, chosen.InstanceID); err != nil {
		return nil, err
	}
	s.metrics.BindingsCreated.Inc()

	// Another request may have won the insert race; re-read so the
	// response reflects whichever binding actually landed.
	final, ok, err := s.store.GetBinding(ctx, term)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &chosen, nil
	}
	return &final, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
