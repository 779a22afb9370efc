// Package remote talks to the PostgREST endpoint that holds workout entries
// and yearly session counts.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

const (
	noRowsCode   = "PGRST116"
	objectAccept = "application/vnd.pgrst.object+json"
)

var (
	_ ports.RemoteStore  = (*Client)(nil)
	_ ports.CounterStore = (*Client)(nil)
)

// Client implements the remote store over PostgREST.
type Client struct {
	base        *url.URL
	apiKey      string
	table       string
	countsTable string
	httpClient  *http.Client
}

// New builds a client from settings. The API key comes from the settings or,
// when empty, from the environment variable they name.
func New(settings domain.RemoteSettings, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(settings.URL) == "" {
		return nil, fmt.Errorf("remote url is empty")
	}
	base, err := url.Parse(strings.TrimRight(settings.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/rest/v1") {
		base = base.JoinPath("rest", "v1")
	}
	if httpClient == nil {
		timeout := settings.Timeout
		if timeout <= 0 {
			timeout = domain.DefaultRemoteTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	key := settings.APIKey
	if key == "" && settings.APIKeyEnv != "" {
		key = os.Getenv(settings.APIKeyEnv)
	}
	return &Client{
		base:        base,
		apiKey:      key,
		table:       defaultString(settings.Table, "workout_entries"),
		countsTable: defaultString(settings.CountsTable, "session_counts"),
		httpClient:  httpClient,
	}, nil
}

// Endpoint returns the REST root the client talks to.
func (c *Client) Endpoint() string {
	return c.base.String()
}

// Select returns every record of the partition ordered by position.
func (c *Client) Select(ctx context.Context, partition domain.Partition) ([]domain.Record, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("day", "eq."+string(partition))
	q.Set("order", "exercise_index.asc")

	var records []domain.Record
	if err := c.do(ctx, domain.RemoteSelect, http.MethodGet, c.table, q, nil, nil, &records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Partition = partition
	}
	return records, nil
}

// Upsert writes records in one request, merging on (day, exercise_index).
func (c *Client) Upsert(ctx context.Context, records ...domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("on_conflict", "day,exercise_index")
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	return c.do(ctx, domain.RemoteUpsert, http.MethodPost, c.table, q, records, headers, nil)
}

// Update sets columns on the record at (partition, position).
func (c *Client) Update(ctx context.Context, partition domain.Partition, position int, fields map[domain.Field]any) error {
	q := url.Values{}
	q.Set("day", "eq."+string(partition))
	q.Set("exercise_index", "eq."+strconv.Itoa(position))
	body := make(map[string]any, len(fields))
	for field, v := range fields {
		body[string(field)] = v
	}
	headers := map[string]string{"Prefer": "return=minimal"}
	return c.do(ctx, domain.RemoteUpdate, http.MethodPatch, c.table, q, body, headers, nil)
}

// DeleteAbove removes records of the partition positioned after threshold.
func (c *Client) DeleteAbove(ctx context.Context, partition domain.Partition, threshold int) error {
	q := url.Values{}
	q.Set("day", "eq."+string(partition))
	q.Set("exercise_index", "gt."+strconv.Itoa(threshold))
	return c.do(ctx, domain.RemoteDelete, http.MethodDelete, c.table, q, nil, nil, nil)
}

type countRow struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Count reads the session count stored for year. A missing row is reported
// as a RemoteError with NoRows set.
func (c *Client) Count(ctx context.Context, year int) (int, error) {
	q := url.Values{}
	q.Set("select", "count")
	q.Set("year", "eq."+strconv.Itoa(year))
	var row countRow
	headers := map[string]string{"Accept": objectAccept}
	if err := c.do(ctx, domain.RemoteSelect, http.MethodGet, c.countsTable, q, nil, headers, &row); err != nil {
		return 0, err
	}
	return row.Count, nil
}

// InsertCount creates the row for year and returns the stored count.
func (c *Client) InsertCount(ctx context.Context, year, count int) (int, error) {
	q := url.Values{}
	q.Set("select", "count")
	headers := map[string]string{
		"Accept": objectAccept,
		"Prefer": "return=representation",
	}
	var row countRow
	if err := c.do(ctx, domain.RemoteInsert, http.MethodPost, c.countsTable, q, countRow{Year: year, Count: count}, headers, &row); err != nil {
		return 0, err
	}
	return row.Count, nil
}

// UpsertCount stores count for year.
func (c *Client) UpsertCount(ctx context.Context, year, count int) error {
	q := url.Values{}
	q.Set("on_conflict", "year")
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	return c.do(ctx, domain.RemoteUpsert, http.MethodPost, c.countsTable, q, countRow{Year: year, Count: count}, headers, nil)
}

// Ping issues a minimal read against the entries table.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "day")
	q.Set("limit", "1")
	var rows []json.RawMessage
	return c.do(ctx, domain.RemoteSelect, http.MethodGet, c.table, q, nil, nil, &rows)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) do(ctx context.Context, op domain.RemoteOp, method, table string, query url.Values, body any, headers map[string]string, out any) error {
	endpoint := c.base.JoinPath(table)
	endpoint.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &domain.RemoteError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return &domain.RemoteError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 300 {
		remoteErr := &domain.RemoteError{Op: op, Status: resp.StatusCode, Message: resp.Status}
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && (apiErr.Code != "" || apiErr.Message != "") {
			remoteErr.Code = apiErr.Code
			remoteErr.Message = apiErr.Message
			remoteErr.NoRows = apiErr.Code == noRowsCode
		}
		return remoteErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
