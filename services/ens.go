package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"whalewatch-backend/utils"
)

// ENSResolver turns an ENS name into a hex address.
type ENSResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// HTTPENSResolver calls an external resolution service
// (GET {base}/resolve?name=vitalik.eth -> {"address":"0x..."}).
type HTTPENSResolver struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewENSResolver() *HTTPENSResolver {
	return &HTTPENSResolver{
		BaseURL: os.Getenv("ENS_RESOLVER_URL"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (r *HTTPENSResolver) Resolve(ctx context.Context, name string) (string, error) {
	if r.BaseURL == "" {
		return "", fmt.Errorf("ENS resolver not configured")
	}

	u, err := url.Parse(r.BaseURL + "/resolve")
	if err != nil {
		return "", fmt.Errorf("failed to parse resolver URL: %w", err)
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("resolver returned status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode resolver response: %w", err)
	}

	if utils.ClassifyInput(out.Address) != utils.KindAddress {
		return "", fmt.Errorf("resolver returned no address for %s", name)
	}
	return out.Address, nil
}
