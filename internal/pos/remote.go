package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Remote is the server side of the sync protocol as the engine sees it.
//
// PushMutations sends the current outbox as one batch and returns the ids
// the server accepted. The server treats reapplication of an already
// applied mutation id as a no-op, so at-least-once delivery is safe.
//
// FetchChanges returns everything that changed on the server since the
// given checkpoint timestamp, plus the new checkpoint.
type Remote interface {
	PushMutations(ctx context.Context, mutations []Mutation) (appliedIDs []string, err error)
	FetchChanges(ctx context.Context, since int64) (int64, ChangeSet, error)
}

// HTTPRemote speaks the wire protocol against a base URL:
//
//	POST {base}/sync/mutations  {"mutations": [...]} -> {"appliedIds": [...]}
//	GET  {base}/sync/changes?since=<ts>              -> {"ts": ..., "changes": {...}}
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRemote creates a Remote for the given API base URL,
// e.g. "http://localhost:8080/api".
func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type pushRequest struct {
	Mutations []Mutation `json:"mutations"`
}

type pushResponse struct {
	AppliedIDs []string `json:"appliedIds"`
}

type changesResponse struct {
	TS      int64     `json:"ts"`
	Changes ChangeSet `json:"changes"`
}

// PushMutations implements Remote.
func (r *HTTPRemote) PushMutations(ctx context.Context, mutations []Mutation) ([]string, error) {
	body, err := json.Marshal(pushRequest{Mutations: mutations})
	if err != nil {
		return nil, fmt.Errorf("encode mutations: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/sync/mutations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "push", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Op: "push", Status: resp.StatusCode}
	}

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &NetworkError{Op: "push", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.AppliedIDs, nil
}

// FetchChanges implements Remote.
func (r *HTTPRemote) FetchChanges(ctx context.Context, since int64) (int64, ChangeSet, error) {
	url := r.baseURL + "/sync/changes?since=" + strconv.FormatInt(since, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, ChangeSet{}, fmt.Errorf("build pull request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, ChangeSet{}, &NetworkError{Op: "pull", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, ChangeSet{}, &NetworkError{Op: "pull", Status: resp.StatusCode}
	}

	var out changesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, ChangeSet{}, &NetworkError{Op: "pull", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.TS, out.Changes, nil
}
