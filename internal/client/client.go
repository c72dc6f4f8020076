// Package client talks to the Data Provider HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"boletim/internal/core"
	"boletim/internal/table"
)

// StatusError is a non-success response from the provider.
type StatusError struct {
	Code    int
	Type    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("provider returned %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Client struct {
	baseURL string
	http    *http.Client
	fetches singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New returns a client for the provider at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid provider URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClientWithPooling(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// FetchRecord returns the record for date. Concurrent fetches of the same
// date share one request, which outlives any single caller's cancellation;
// each caller still returns as soon as its own ctx is done.
func (c *Client) FetchRecord(ctx context.Context, date core.Date) (*core.Record, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(date.ISO(), func() (any, error) {
		var rec core.Record
		if err := c.getJSON(fetchCtx, tablePath(date), &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rec := res.Val.(*core.Record)
		if res.Shared {
			rec = rec.Clone()
		}
		return rec, nil
	}
}

// Footer returns the provider-side footer over stored values.
func (c *Client) Footer(ctx context.Context, date core.Date) (table.Footer, error) {
	var body struct {
		Footer table.Footer `json:"footer"`
	}
	if err := c.getJSON(ctx, tablePath(date)+"/rodape", &body); err != nil {
		return table.Footer{}, err
	}
	return body.Footer, nil
}

// Save submits a save payload. Any non-2xx status is an error.
func (c *Client) Save(ctx context.Context, req core.SaveRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode save request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tabela", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post save: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.DebugContext(ctx, "Save submitted", "date", req.Date.String(), "rows", len(req.Rows))
	return nil
}

// ExportXLSX streams the day's workbook into w.
func (c *Client) ExportXLSX(ctx context.Context, date core.Date, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, tablePath(date)+"/export.xlsx")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download export: %w", err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get returns the response for a 2xx status; the caller closes the body.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &StatusError{Code: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Type  string `json:"type"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil {
		se.Message, se.Type = body.Error, body.Type
	}
	return se
}

// tablePath keeps the date's slashes: /api/tabela/18/10/2026.
func tablePath(date core.Date) string {
	return "/api/tabela/" + date.String()
}
