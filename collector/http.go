package collector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	maxFetchRetries  = 3
	maxResponseBytes = 8 << 20 // 8MB
)

var httpRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "newswire_http_retries_total",
	Help: "The total number of retried upstream HTTP requests",
})

// doGet performs a GET request and returns the response body. Transient
// failures (network errors, 429, 5xx) are retried with exponential backoff.
func doGet(ctx context.Context, client *http.Client, rawURL string, header http.Header) ([]byte, error) {
	var body []byte

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for name, values := range header {
			req.Header[name] = values
		}

		resp, err := client.Do(req)
		if err != nil {
			httpRetries.Inc()
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			httpRetries.Inc()
			return fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxFetchRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// getJSON performs a GET request and decodes the JSON response into out
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out interface{}) error {
	body, err := doGet(ctx, client, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", rawURL, err)
	}
	return nil
}

// postForm performs a single form-encoded POST request, used for the OAuth
// token endpoints.
func postForm(ctx context.Context, client *http.Client, rawURL string, header http.Header, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	for name, values := range header {
		req.Header[name] = values
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST %s: status %d", rawURL, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// postJSON performs a single JSON POST request, used for the stream-rule
// endpoint.
func postJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	for name, values := range header {
		req.Header[name] = values
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Rule creation answers 201
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("POST %s: status %d", rawURL, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func basicAuth(user string, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}

func bearerHeader(token string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header
}
