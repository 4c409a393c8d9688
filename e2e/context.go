// Package e2e drives the registry through its public HTTP API, end to end,
// using godog scenarios.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unstoppabledomains/nomulus/internal/platform/metrics"
	"github.com/unstoppabledomains/nomulus/internal/registry/poll"
	"github.com/unstoppabledomains/nomulus/internal/registry/pricing"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	"github.com/unstoppabledomains/nomulus/internal/registry/transfer"
	httptransport "github.com/unstoppabledomains/nomulus/internal/transport/http"
	"github.com/unstoppabledomains/nomulus/pkg/platform/middleware/auth"
	"github.com/unstoppabledomains/nomulus/pkg/testutil"
)

const signingKey = "e2e-signing-key"

// TestContext owns one in-process registry instance per scenario and the
// state the steps share: the last HTTP response and a controllable clock.
type TestContext struct {
	server    *httptest.Server
	client    *http.Client
	clock     *testutil.FakeClock
	validator *auth.Validator

	lastStatus int
	lastBody   map[string]any
}

// NewTestContext returns an empty context; Reset builds the first instance.
func NewTestContext() *TestContext {
	return &TestContext{client: &http.Client{Timeout: 10 * time.Second}}
}

// Reset tears down the previous instance and starts a fresh registry with
// the development fixtures.
func (tc *TestContext) Reset() error {
	tc.Close()

	tc.clock = testutil.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	st := store.NewMemory(store.WithClock(tc.clock))
	if err := store.SeedDev(context.Background(), st); err != nil {
		return fmt.Errorf("seed fixtures: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	transfers := transfer.New(st, pricing.NewStatic(pricing.DefaultTable()),
		transfer.WithLogger(logger), transfer.WithMetrics(m))
	polls := poll.New(st, poll.WithLogger(logger), poll.WithMetrics(m))

	tc.validator = auth.NewValidator(signingKey)
	handler := httptransport.NewHandler(transfers, polls, logger)
	router := httptransport.NewRouter(handler, tc.validator, m, logger,
		httptransport.WithTimeSource(tc.clock.Now))
	tc.server = httptest.NewServer(router)

	tc.lastStatus = 0
	tc.lastBody = nil
	return nil
}

// Close shuts down the current instance, if any.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}
}

// AdvanceDays moves the registry clock forward by whole days.
func (tc *TestContext) AdvanceDays(days int) {
	tc.clock.Advance(time.Duration(days) * 24 * time.Hour)
}

// POST sends an authenticated JSON request as the given registrar.
func (tc *TestContext) POST(registrarID, path string, body map[string]any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(http.MethodPost, tc.server.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.send(registrarID, req)
}

// GET sends an authenticated request as the given registrar.
func (tc *TestContext) GET(registrarID, path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.server.URL+path, nil)
	if err != nil {
		return err
	}
	return tc.send(registrarID, req)
}

func (tc *TestContext) send(registrarID string, req *http.Request) error {
	token, err := tc.validator.IssueToken(registrarID, false, time.Hour)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(payload) > 0 {
		// Some endpoints return 204 with no body.
		if err := json.Unmarshal(payload, &tc.lastBody); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// LastStatus returns the status code of the last response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// LastBodyField walks a dotted path into the last JSON response body.
func (tc *TestContext) LastBodyField(path string) (any, error) {
	var current any = tc.lastBody
	for _, part := range splitPath(path) {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: not an object", path)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", path)
		}
	}
	return current, nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}
