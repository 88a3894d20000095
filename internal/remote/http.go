package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

// HTTPSyncer pushes records to the backend sync endpoint as JSON. The
// backend answers 200 for an acknowledgement and 409 with its competing
// record when versions diverge.
type HTTPSyncer struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
}

func NewHTTPSyncer(baseURL, apiKey string) *HTTPSyncer {
	return &HTTPSyncer{
		baseURL:     baseURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

func (s *HTTPSyncer) AttemptSync(ctx context.Context, record *model.SyncableRecord) (Result, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Result{}, fmt.Errorf("marshal record %s: %w", record.ID, err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, &TransientError{Err: ctx.Err()}
			case <-time.After(s.retryDelay):
			}
		}

		result, retry, err := s.attempt(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retry {
			return Result{}, err
		}
	}

	return Result{}, &TransientError{Err: lastErr}
}

// attempt runs a single request. retry=true means the failure is worth
// another attempt (connection error, 429, 5xx).
func (s *HTTPSyncer) attempt(ctx context.Context, body []byte) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sync/records", bytes.NewReader(body))
	if err != nil {
		return Result{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return Result{Acknowledged: true}, false, nil

	case resp.StatusCode == http.StatusConflict:
		var remote model.SyncableRecord
		if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
			return Result{}, false, fmt.Errorf("decode conflicting record: %w", err)
		}
		return Result{Remote: &remote}, false, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Result{}, true, fmt.Errorf("backend returned %d", resp.StatusCode)

	default:
		return Result{}, false, fmt.Errorf("backend rejected record: %d", resp.StatusCode)
	}
}

// HealthProbe reports connectivity by probing the backend health
// endpoint. It satisfies model.NetworkStatus for daemon deployments that
// have no OS-level connectivity signal.
type HealthProbe struct {
	URL    string
	Client *http.Client
}

func NewHealthProbe(baseURL string) *HealthProbe {
	return &HealthProbe{
		URL:    baseURL + "/health",
		Client: &http.Client{Timeout: 3 * time.Second},
	}
}

func (p *HealthProbe) Online() bool {
	resp, err := p.Client.Get(p.URL)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
