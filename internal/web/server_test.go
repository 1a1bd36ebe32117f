package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/config"
	"github.com/JonMunkholm/comexcl/internal/core"
	"github.com/JonMunkholm/comexcl/internal/download"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []core.Request
	body string
	err  error
	wait chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, req core.Request, out io.Writer) (*core.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.wait != nil {
		<-f.wait
	}
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.WriteString(out, f.body); err != nil {
		return nil, err
	}
	return &core.Result{RunID: uuid.New(), Total: 1}, nil
}

func (f *fakeRunner) requests() []core.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Request(nil), f.reqs...)
}

func newTestServer(t *testing.T, runner Runner, sec config.SecurityConfig) *Server {
	t.Helper()
	cfg := &config.Config{Security: sec}
	return NewServer(runner, core.NewRunLimiter(1, 50*time.Millisecond), cfg)
}

func post(t *testing.T, s *Server, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/importar", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestImport_StreamsEnvelope(t *testing.T) {
	envelope := "{\n  \"descricao\": \"x\",\n  \"total\": 1,\n  \"resultados\": [\n{}\n]\n}\n"
	runner := &fakeRunner{body: envelope}
	s := newTestServer(t, runner, config.SecurityConfig{})

	rec := post(t, s, `{"ano": 2025, "mes": 3, "limit": 10}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Body.String() != envelope {
		t.Errorf("body = %q, want %q", rec.Body.String(), envelope)
	}

	reqs := runner.requests()
	if len(reqs) != 1 {
		t.Fatalf("runs = %d, want 1", len(reqs))
	}
	want := core.Request{Year: 2025, Month: 3, Limit: 10, EnableLimit: true}
	if reqs[0] != want {
		t.Errorf("request = %+v, want %+v", reqs[0], want)
	}
}

func TestImport_NoLimitLeavesCapOff(t *testing.T) {
	runner := &fakeRunner{body: "{}"}
	s := newTestServer(t, runner, config.SecurityConfig{})

	rec := post(t, s, `{"ano": 2024, "mes": 12, "persist": true}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := runner.requests()[0]
	if got.EnableLimit || got.Limit != 0 || !got.Persist {
		t.Errorf("request = %+v", got)
	}
}

func TestImport_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `ano=2025`},
		{name: "year too low", body: `{"ano": 1899, "mes": 1}`},
		{name: "year too high", body: `{"ano": 2101, "mes": 1}`},
		{name: "month zero", body: `{"ano": 2025, "mes": 0}`},
		{name: "month thirteen", body: `{"ano": 2025, "mes": 13}`},
		{name: "limit zero", body: `{"ano": 2025, "mes": 1, "limit": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s := newTestServer(t, runner, config.SecurityConfig{})

			rec := post(t, s, tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Code != "REQ001" {
				t.Errorf("code = %q, want REQ001", resp.Code)
			}
			if n := len(runner.requests()); n != 0 {
				t.Errorf("runner called %d times", n)
			}
		})
	}
}

func TestImport_RunErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no matching resource",
			err:        fmt.Errorf("%w for 03/2025", catalog.ErrNoMatchingResource),
			wantStatus: http.StatusNotFound,
			wantCode:   "CAT001",
		},
		{
			name:       "no data",
			err:        core.ErrNoDataFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "DATA001",
		},
		{
			name:       "upstream",
			err:        fmt.Errorf("%w: success=false", catalog.ErrUpstream),
			wantStatus: http.StatusBadGateway,
			wantCode:   "CAT002",
		},
		{
			name:       "download",
			err:        fmt.Errorf("%w: status 500", download.ErrDownload),
			wantStatus: http.StatusBadGateway,
			wantCode:   "DL001",
		},
		{
			name:       "persistence disabled",
			err:        core.ErrPersistenceDisabled,
			wantStatus: http.StatusConflict,
			wantCode:   "RUN003",
		},
		{
			name:       "unknown",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeRunner{err: tt.err}, config.SecurityConfig{})

			rec := post(t, s, `{"ano": 2025, "mes": 3}`, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

func TestImport_BusyReturns503(t *testing.T) {
	runner := &fakeRunner{body: "{}", wait: make(chan struct{})}
	s := newTestServer(t, runner, config.SecurityConfig{})

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- post(t, s, `{"ano": 2025, "mes": 3}`, nil)
	}()

	// Wait until the first run holds the only slot.
	deadline := time.Now().Add(2 * time.Second)
	for len(runner.requests()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := post(t, s, `{"ano": 2025, "mes": 4}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "RUN001" {
		t.Errorf("code = %q, want RUN001", resp.Code)
	}

	close(runner.wait)
	if first := <-done; first.Code != http.StatusOK {
		t.Errorf("first run status = %d, want 200", first.Code)
	}
}

func TestImport_APIKey(t *testing.T) {
	sec := config.SecurityConfig{RequireAPIKey: true, APIKeysRaw: "k1,k2"}

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{name: "missing", key: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong", key: "nope", wantStatus: http.StatusForbidden},
		{name: "valid", key: "k2", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeRunner{body: "{}"}, sec)
			hdr := map[string]string{}
			if tt.key != "" {
				hdr["X-API-Key"] = tt.key
			}
			rec := post(t, s, `{"ano": 2025, "mes": 3}`, hdr)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	sec := config.SecurityConfig{RequireAPIKey: true, APIKeysRaw: "k1"}
	s := newTestServer(t, &fakeRunner{}, sec)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := HealthResponse{Status: "ok", ActiveRuns: 0, MaxRuns: 1}
	if resp != want {
		t.Errorf("health = %+v, want %+v", resp, want)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security header")
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, config.SecurityConfig{})
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}
