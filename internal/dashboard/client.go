package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stockpulse/stockpulse/internal/platform/httpx"
	"github.com/stockpulse/stockpulse/internal/stocks"
)

// StockDataPath is the data endpoint relative to the API base URL.
const StockDataPath = "/api/stock_data"

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Fetcher loads the raw stock records.
type Fetcher interface {
	FetchRecords(ctx context.Context) ([]stocks.StockRecord, error)
}

// FetchError describes a failed call to the data endpoint. Status is zero for
// transport and decoding failures.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "fetch failed"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client calls the data endpoint over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a client for the API at baseURL. A zero timeout waits for
// the server indefinitely.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + StockDataPath,
		http: &http.Client{Timeout: timeout},
	}
}

// FetchRecords performs a single GET of the data endpoint.
func (c *Client) FetchRecords(ctx context.Context) ([]stocks.StockRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Message: "Network Error", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	var records []stocks.StockRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	if records == nil {
		records = []stocks.StockRecord{}
	}
	return records, nil
}

func statusError(resp *http.Response) error {
	fe := &FetchError{
		Status: resp.StatusCode,
		Err:    fmt.Errorf("%w: status %d", httpx.ErrUpstream, resp.StatusCode),
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil {
		var body httpx.ErrorBody
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			fe.Message = body.Error
		}
	}
	if fe.Message == "" {
		fe.Message = fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
	}
	return fe
}
