package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"searchbuddy/internal/wire"
)

// discoveryClient calls discovery at one fixed base URL. Instance calls
// go through fetchChatrooms instead, which takes the instance address
// per call; both share postJSON.
type discoveryClient struct {
	baseURL string
	http    *http.Client
}

func newDiscoveryClient(baseURL string, timeout time.Duration) *discoveryClient {
	return &discoveryClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (d *discoveryClient) resolveChatroom(ctx context.Context, term string) (*wire.Instance, error) {
	var resp wire.ChatroomResponse
	if err := postJSON(ctx, d.http, d.baseURL+"/chatroom", wire.ChatroomRequest{Term: term}, &resp); err != nil {
		return nil, err
	}
	return resp.Instance, nil
}

// fetchChatrooms POSTs a group of terms to one resolved instance's
// /chatrooms endpoint.
func fetchChatrooms(ctx context.Context, client *http.Client, address string, terms []string) (wire.ChatroomsResponse, error) {
	var resp wire.ChatroomsResponse
	url := fmt.Sprintf("http://%s/chatrooms", address)
	if err := postJSON(ctx, client, url, wire.ChatroomsRequest(terms), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
