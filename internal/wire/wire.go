// Package wire defines the JSON shapes exchanged between clients and
// chatroom instances, and between the instance/discovery/gateway
// services.
package wire

import "encoding/json"

// ClientMessageType discriminates client->server frames.
type ClientMessageType string

const (
	ClientJoin              ClientMessageType = "Join"
	ClientNewMessage        ClientMessageType = "NewMessage"
	ClientChatsFromTodayReq ClientMessageType = "ChatsFromTodayRequest"
)

// ServerMessageType discriminates server->client frames.
type ServerMessageType string

const (
	ServerJoined             ServerMessageType = "Joined"
	ServerNewUser            ServerMessageType = "NewUser"
	ServerUserDisconnected   ServerMessageType = "UserDisconnected"
	ServerNewMessage         ServerMessageType = "NewMessage"
	ServerChatsFromTodayResp ServerMessageType = "ChatsFromTodayResponse"
)

// ClientEnvelope is the discriminated union of all frames a client may
// send. Only the field matching Type is meaningful.
type ClientEnvelope struct {
	Type       ClientMessageType `json:"type"`
	ChatroomID int32             `json:"chatroom_id,omitempty"`
	Content    string            `json:"content,omitempty"`
}

// ServerEnvelope is the discriminated union of all frames the server
// may send.
type ServerEnvelope struct {
	Type       ServerMessageType `json:"type"`
	ChatroomID int32             `json:"chatroom_id,omitempty"`
	UserID     int32             `json:"user_id,omitempty"`
	Content    string            `json:"content,omitempty"`
	Messages   []string          `json:"messages,omitempty"`
}

// ParseClientFrame decodes a raw text frame. Any unparseable or
// unrecognized payload returns ok=false; the caller silently drops it
// per spec.
func ParseClientFrame(data []byte) (ClientEnvelope, bool) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientEnvelope{}, false
	}
	switch env.Type {
	case ClientJoin, ClientNewMessage, ClientChatsFromTodayReq:
		return env, true
	default:
		return ClientEnvelope{}, false
	}
}

// Marshal encodes a server envelope ready for a text frame.
func (e ServerEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Joined(chatroomID int32) ServerEnvelope {
	return ServerEnvelope{Type: ServerJoined, ChatroomID: chatroomID}
}

func NewUser(userID int32) ServerEnvelope {
	return ServerEnvelope{Type: ServerNewUser, UserID: userID}
}

func UserDisconnected(userID int32) ServerEnvelope {
	return ServerEnvelope{Type: ServerUserDisconnected, UserID: userID}
}

func NewMessage(content string) ServerEnvelope {
	return ServerEnvelope{Type: ServerNewMessage, Content: content}
}

func ChatsFromTodayResponse(messages []string) ServerEnvelope {
	return ServerEnvelope{Type: ServerChatsFromTodayResp, Messages: messages}
}
