package instancehost

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"searchbuddy/internal/channelid"
	"searchbuddy/internal/room"
	"searchbuddy/internal/wire"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.limiter.Allow(ip) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	if accept, reason := s.guard.ShouldAccept(); !accept {
		s.logger.Debug().Str("reason", reason).Str("ip", ip).Msg("connection rejected by resource guard")
		s.metrics.ConnectionsRejected.Inc()
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.metrics.ConnectionsTotal.Inc()
	go s.handleConnection(conn)
}

// handleConnection owns a socket's read loop for its whole lifetime.
// The first frame must be Join; any other first frame closes the
// connection (see awaitJoin). Once joined, the write half is handed to the room actor via
// socketConn and this goroutine only ever reads.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	userID := newUserID()
	sc := newSocketConn(conn)

	joinedRoom, ok := s.awaitJoin(conn, userID, sc)
	if !ok {
		return
	}

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			joinedRoom.Disconnect(userID)
			return
		}
		if op == ws.OpClose {
			joinedRoom.Disconnect(userID)
			return
		}
		if op != ws.OpText {
			continue
		}

		env, ok := wire.ParseClientFrame(data)
		if !ok {
			s.logger.Warn().Int32("user_id", userID).Msg("dropping unparseable or unrecognized client frame")
			continue
		}

		switch env.Type {
		case wire.ClientJoin:
			// Joining is unsupported once already in a room.
		case wire.ClientNewMessage:
			joinedRoom.NewMessage(env.Content)
		case wire.ClientChatsFromTodayReq:
			joinedRoom.ChatsFromTodayRequest()
		}
	}
}

// awaitJoin reads exactly the first frame, requiring it to be a Join,
// and enrolls the connection in the named room. Any other frame, or a
// read error, closes the connection without ever reaching the room
// actor.
func (s *Server) awaitJoin(conn net.Conn, userID int32, sc *socketConn) (*room.Chatroom, bool) {
	data, op, err := wsutil.ReadClientData(conn)
	if err != nil || op != ws.OpText {
		return nil, false
	}

	env, ok := wire.ParseClientFrame(data)
	if !ok || env.Type != wire.ClientJoin {
		s.logger.Warn().Int32("user_id", userID).Msg("first frame was not Join, dropping connection")
		return nil, false
	}

	chatroom := s.registry.GetOrCreate(env.ChatroomID)
	chatroom.Connect(userID, sc)
	return chatroom, true
}

func (s *Server) handleChatrooms(w http.ResponseWriter, r *http.Request) {
	var terms wire.ChatroomsRequest
	if err := json.NewDecoder(r.Body).Decode(&terms); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := make(wire.ChatroomsResponse, len(terms))
	for _, term := range terms {
		id := channelid.ChannelID(term)
		chatroom := s.registry.GetOrCreate(id)
		resp[term] = wire.ChatroomCount{ChatroomID: id, NumUsers: chatroom.UserCount()}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
