package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/slotsync/pkg/api"
	"github.com/cuemby/slotsync/pkg/gateway"
	"github.com/cuemby/slotsync/pkg/storage"
	"github.com/cuemby/slotsync/pkg/types"
)

// StatusError is a non-2xx answer from the server
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Gateway implements gateway.Gateway against the slotsync HTTP API
type Gateway struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway for endpoint (e.g. http://127.0.0.1:8080).
// timeout bounds every request; 0 leaves only the caller's context.
func NewGateway(endpoint string, timeout time.Duration) *Gateway {
	return &Gateway{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
		timeout:  timeout,
	}
}

// FetchAll lists every persisted record
func (g *Gateway) FetchAll(ctx context.Context) ([]types.Record, error) {
	var list api.ListResponse
	if err := g.do(ctx, http.MethodGet, "/v1/slots", nil, &list); err != nil {
		return nil, gateway.Fail(gateway.OpFetchAll, types.SlotKey{}, err)
	}
	return list.Records, nil
}

// Upsert creates or replaces a record
func (g *Gateway) Upsert(ctx context.Context, rec types.Record) error {
	body := api.SlotBody{Person: rec.Person, Completed: rec.Completed}
	if err := g.do(ctx, http.MethodPut, slotPath(rec.Key()), body, nil); err != nil {
		return gateway.Fail(gateway.OpUpsert, rec.Key(), err)
	}
	return nil
}

// Update sets the completed flag of an existing record
func (g *Gateway) Update(ctx context.Context, key types.SlotKey, completed bool) error {
	body := api.CompletionBody{Completed: &completed}
	if err := g.do(ctx, http.MethodPatch, slotPath(key), body, nil); err != nil {
		return gateway.Fail(gateway.OpUpdate, key, err)
	}
	return nil
}

// Remove deletes a record
func (g *Gateway) Remove(ctx context.Context, key types.SlotKey) error {
	if err := g.do(ctx, http.MethodDelete, slotPath(key), nil, nil); err != nil {
		return gateway.Fail(gateway.OpRemove, key, err)
	}
	return nil
}

func slotPath(key types.SlotKey) string {
	return "/v1/slots/" + key.String()
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		statusErr := &StatusError{Code: resp.StatusCode, Message: e.Error}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", storage.ErrNotFound, statusErr)
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
