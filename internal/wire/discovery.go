package wire

import "encoding/json"

// Instance describes a live chatroom-server instance as discovery
// knows it.
type Instance struct {
	InstanceID int32  `json:"instance_id"`
	Address    string `json:"address"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	ListenAddress string `json:"listen_address"`
}

// RegisterResponse is the response to POST /register.
type RegisterResponse struct {
	InstanceID int32 `json:"instance_id"`
}

// PingRequest is the body of POST /ping.
type PingRequest struct {
	ListenAddress string `json:"listen_address"`
	InstanceID    int32  `json:"instance_id"`
}

// PingResult is the outcome of a heartbeat.
type PingResult string

const (
	PingOk             PingResult = "Ok"
	PingNoLongerActive PingResult = "NoLongerActive"
)

// PingResponse is the response to POST /ping.
type PingResponse struct {
	PingResult PingResult `json:"ping_result"`
}

// ChatroomRequest is the body of POST /chatroom (discovery lookup).
type ChatroomRequest struct {
	Term string `json:"term"`
}

// ChatroomResponse is the response to POST /chatroom. Instance is nil
// when no active instance exists to host the term.
type ChatroomResponse struct {
	Instance *Instance `json:"instance"`
}

// ChatroomsRequest is the body of POST /chatrooms against an instance:
// a plain list of terms.
type ChatroomsRequest []string

// ChatroomCount is the (chatroom_id, user_count) pair an instance
// returns for each requested term, wire-encoded as a 2-element JSON
// array per the protocol's [chatroom_id, user_count] shape.
type ChatroomCount struct {
	ChatroomID int32
	NumUsers   int32
}

func (c ChatroomCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int32{c.ChatroomID, c.NumUsers})
}

func (c *ChatroomCount) UnmarshalJSON(data []byte) error {
	var pair [2]int32
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.ChatroomID, c.NumUsers = pair[0], pair[1]
	return nil
}

// ChatroomsResponse maps each requested term to its resolved room.
type ChatroomsResponse map[string]ChatroomCount

// GatewayEntry is one element of the search gateway's response array.
type GatewayEntry struct {
	Term       string `json:"term"`
	ChatroomID int32  `json:"chatroom_id"`
	NumUsers   int32  `json:"num_users"`
	Online     bool   `json:"online"`
	URL        string `json:"url"`
}
