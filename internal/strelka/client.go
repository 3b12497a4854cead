package strelka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultStatusURL  = "https://strelkacard.ru/api/cards/status/"
	DefaultCardTypeID = "3ae427a1-0f17-4524-acb1-a3f50090a8f3"
	DefaultTimeout    = 20 * time.Second

	maxBody = 1 << 20
)

// ErrLookupFailed covers transport errors, timeouts, non-2xx answers and
// bodies that are not a JSON object.
var ErrLookupFailed = errors.New("balance lookup failed")

// APIError is an error reported by the Strelka API inside a 2xx response.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "strelka api: " + e.Message
}

type Client struct {
	StatusURL  string
	CardTypeID string
	HTTP       *http.Client
}

func NewClient(statusURL, cardTypeID string, timeout time.Duration) *Client {
	if statusURL == "" {
		statusURL = DefaultStatusURL
	}
	if cardTypeID == "" {
		cardTypeID = DefaultCardTypeID
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		StatusURL:  statusURL,
		CardTypeID: cardTypeID,
		HTTP:       &http.Client{Timeout: timeout},
	}
}

// Fetch asks the status endpoint about card. Single attempt, no retries.
func (c *Client) Fetch(ctx context.Context, card string) (*Status, error) {
	u, err := url.Parse(c.StatusURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse status url: %v", ErrLookupFailed, err)
	}
	q := u.Query()
	q.Set("cardnum", card)
	q.Set("cardtypeid", c.CardTypeID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrLookupFailed, err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrLookupFailed, resp.StatusCode, snippet(body))
	}

	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil || data == nil {
		return nil, fmt.Errorf("%w: unexpected response format: %s", ErrLookupFailed, snippet(body))
	}

	if msg := apiError(data); msg != "" {
		return nil, &APIError{Message: msg}
	}

	return parseStatus(data), nil
}

func apiError(data map[string]any) string {
	for _, key := range []string{"error", "message"} {
		v := data[key]
		if !truthy(v) {
			continue
		}
		switch v := v.(type) {
		case string:
			return v
		case bool:
			return key
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
