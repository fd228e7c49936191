package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetJSON issues a GET to rawURL with query q and decodes the body into out.
// Errors are prefixed with exchange.
func GetJSON(ctx context.Context, client *http.Client, exchange, rawURL string, q url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: parse url: %w", exchange, err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", exchange, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http get: %w", exchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", exchange, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", exchange, err)
	}
	return nil
}
