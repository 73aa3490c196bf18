package instancehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"searchbuddy/internal/wire"
)

// discoveryClient is the instance's HTTP client for the register/ping
// protocol discovery exposes.
type discoveryClient struct {
	baseURL string
	http    *http.Client
}

func newDiscoveryClient(baseURL string) *discoveryClient {
	return &discoveryClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *discoveryClient) register(ctx context.Context, listenAddress string) (int32, error) {
	var resp wire.RegisterResponse
	if err := d.postJSON(ctx, "/register", wire.RegisterRequest{ListenAddress: listenAddress}, &resp); err != nil {
		return 0, err
	}
	return resp.InstanceID, nil
}

func (d *discoveryClient) ping(ctx context.Context, listenAddress string, instanceID int32) (wire.PingResult, error) {
	var resp wire.PingResponse
	req := wire.PingRequest{ListenAddress: listenAddress, InstanceID: instanceID}
	if err := d.postJSON(ctx, "/ping", req, &resp); err != nil {
		return "", err
	}
	return resp.PingResult, nil
}

func (d *discoveryClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("call discovery %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discovery %s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
