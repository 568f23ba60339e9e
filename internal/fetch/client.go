package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/plazalab/plaza-insights/internal/record"
)

// DefaultTimeout bounds every upstream call when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// TokenProvider supplies the bearer token attached to outgoing requests.
// The token is opaque to this layer; ok=false sends no Authorization header.
type TokenProvider interface {
	Token() (token string, ok bool)
}

// StaticToken is a TokenProvider for a fixed token. Empty sends nothing.
type StaticToken string

func (t StaticToken) Token() (string, bool) { return string(t), t != "" }

// Client talks to the marketplace backend's JSON endpoints. Responses may
// be a bare payload or an {ok, data, msg} envelope; both are tolerated via
// structural validation, never blind field access.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
}

// NewClient creates a backend client. timeout <= 0 falls back to
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, tokens TokenProvider) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// Ping probes the backend root for reachability. Used by the health
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// GetRecords fetches a list endpoint and returns its entities as raw
// records. Accepted shapes: a bare JSON array, a single JSON object
// (returned as a one-record list), or an {ok, data, msg} envelope around
// either. Everything else is an invalid-shape failure.
func (c *Client) GetRecords(ctx context.Context, path string) ([]record.Record, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, &Error{Kind: KindCancelled, Err: ctx.Err()}
		}
		// Client-side timeouts and transport failures are one taxon.
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &Error{Kind: KindUnauthorized, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindServerError, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &Error{Kind: KindServerError, Status: resp.StatusCode}
	}
	return body, nil
}

// envelope is the optional {ok, data, msg} wrapper some backend endpoints
// use. Ok is a pointer so its presence is distinguishable from ok=false.
type envelope struct {
	Ok   *bool           `json:"ok"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

func decodeRecords(body []byte) ([]record.Record, error) {
	payload := bytes.TrimSpace(body)
	if len(payload) == 0 {
		return nil, &Error{Kind: KindInvalidShape, Message: "empty response body"}
	}

	if payload[0] == '{' {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, &Error{Kind: KindInvalidShape, Err: err}
		}
		if env.Ok != nil || env.Data != nil {
			if env.Ok != nil && !*env.Ok {
				return nil, &Error{Kind: KindServerError, Message: env.Msg}
			}
			if env.Data == nil {
				return nil, &Error{Kind: KindInvalidShape, Message: "envelope has no data field"}
			}
			payload = bytes.TrimSpace(env.Data)
		}
	}

	switch {
	case len(payload) > 0 && payload[0] == '[':
		var records []record.Record
		if err := unmarshalNumbers(payload, &records); err != nil {
			return nil, &Error{Kind: KindInvalidShape, Err: err}
		}
		return records, nil
	case len(payload) > 0 && payload[0] == '{':
		var rec record.Record
		if err := unmarshalNumbers(payload, &rec); err != nil {
			return nil, &Error{Kind: KindInvalidShape, Err: err}
		}
		return []record.Record{rec}, nil
	}
	return nil, &Error{Kind: KindInvalidShape, Message: fmt.Sprintf("unexpected payload starting with %q", payload[0])}
}

// unmarshalNumbers decodes with json.Number so money fields keep their
// exact textual form for decimal conversion.
func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
