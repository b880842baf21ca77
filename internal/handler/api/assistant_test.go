package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "CryptoAssist/internal/domain/models"
	"CryptoAssist/internal/usecase"
	"CryptoAssist/pkg/http/middleware"

	"github.com/labstack/echo/v4"
)

type fakeSession struct {
	running   bool
	startErr  error
	stops     int
	query     string
	answer    string
	runErr    error
	analyzed  []string
	signals   []models.TradingSignal
	portfolio error
}

func (s *fakeSession) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	return nil
}
func (s *fakeSession) Stop(context.Context) { s.stops++; s.running = false }
func (s *fakeSession) Running() bool          { return s.running }
func (s *fakeSession) Status() models.SessionStatus {
	state := models.StateStopped
	if s.running {
		state = models.StateRunning
	}
	return models.SessionStatus{Running: s.running, State: state, Breaker: models.BreakerClosed}
}
func (s *fakeSession) Symbols() []string { return []string{"BTCUSDT"} }
func (s *fakeSession) RunOnce(_ context.Context, q string) (string, error) {
	s.query = q
	return s.answer, s.runErr
}
func (s *fakeSession) AnalyzeSymbol(_ context.Context, symbol, timeframe string) (models.AnalyzeResponse, error) {
	s.analyzed = append(s.analyzed, symbol+"/"+timeframe)
	return models.AnalyzeResponse{Symbol: symbol, Timeframe: timeframe}, nil
}
func (s *fakeSession) ActiveSignals() []models.TradingSignal { return s.signals }
func (s *fakeSession) PortfolioSummary(context.Context) (models.PortfolioSummary, error) {
	if s.portfolio != nil {
		return models.PortfolioSummary{}, s.portfolio
	}
	return models.PortfolioSummary{TotalValueUSD: 10000, OpenSignals: len(s.signals)}, nil
}

type fakeSender struct {
	msgs []models.Message
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, m models.Message) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(s Session, sender *fakeSender, opts Options) *echo.Echo {
	e := echo.New()
	var ms interface {
		SendMessage(context.Context, models.Message) error
	}
	if sender != nil {
		ms = sender
	}
	NewAssistantHandler(nil, s, ms, opts).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string, header ...string) envelope {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s %s: http status %d", method, path, rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	s := &fakeSession{}
	e := newTestServer(s, nil, Options{})

	if env := do(t, e, http.MethodPost, "/api/v1/session/start", ""); env.Status != http.StatusOK || !s.running {
		t.Fatalf("start: %+v", env)
	}

	s.startErr = usecase.ErrAlreadyRunning
	if env := do(t, e, http.MethodPost, "/api/v1/session/start", ""); env.Status != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", env.Status)
	}

	env := do(t, e, http.MethodGet, "/api/v1/session", "")
	var st models.SessionStatus
	_ = json.Unmarshal(env.Data, &st)
	if !st.Running || st.State != models.StateRunning {
		t.Errorf("status = %+v", st)
	}

	do(t, e, http.MethodPost, "/api/v1/session/stop", "")
	if s.stops != 1 || s.running {
		t.Errorf("stop not forwarded")
	}

	s.startErr = usecase.ErrStartupConfig
	if env := do(t, e, http.MethodPost, "/api/v1/session/start", ""); env.Status != http.StatusServiceUnavailable {
		t.Errorf("startup config status = %d, want 503", env.Status)
	}
}

func TestHealth(t *testing.T) {
	e := newTestServer(&fakeSession{}, nil, Options{Components: map[string]bool{"kafka": false}})
	env := do(t, e, http.MethodGet, "/health", "")
	if env.Status != http.StatusOK || !strings.Contains(string(env.Data), `"kafka":false`) {
		t.Errorf("health = %s", env.Data)
	}
}

func TestChat(t *testing.T) {
	s := &fakeSession{answer: "BTC looks strong"}
	e := newTestServer(s, nil, Options{})

	env := do(t, e, http.MethodPost, "/api/v1/chat", `{"message":"how is btc?","context":"swing trade"}`)
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d: %s", env.Status, env.Data)
	}
	var res models.ChatResponse
	_ = json.Unmarshal(env.Data, &res)
	if res.Response != "BTC looks strong" {
		t.Errorf("response = %+v", res)
	}
	if !strings.Contains(s.query, "how is btc?") || !strings.Contains(s.query, "swing trade") {
		t.Errorf("query = %q", s.query)
	}

	if env := do(t, e, http.MethodPost, "/api/v1/chat", `{"message":""}`); env.Status != http.StatusBadRequest {
		t.Errorf("empty message status = %d", env.Status)
	}

	s.runErr = usecase.ErrNoBackend
	if env := do(t, e, http.MethodPost, "/api/v1/chat", `{"message":"x"}`); env.Status != http.StatusServiceUnavailable {
		t.Errorf("no backend status = %d", env.Status)
	}

	s.runErr = context.DeadlineExceeded
	if env := do(t, e, http.MethodPost, "/api/v1/chat", `{"message":"x"}`); env.Status != http.StatusGatewayTimeout {
		t.Errorf("timeout status = %d", env.Status)
	}
}

func TestAnalyze(t *testing.T) {
	s := &fakeSession{}
	e := newTestServer(s, nil, Options{})

	if env := do(t, e, http.MethodPost, "/api/v1/analyze", `{"symbol":"ETHUSDT"}`); env.Status != http.StatusOK {
		t.Fatalf("status = %d: %s", env.Status, env.Data)
	}
	if env := do(t, e, http.MethodPost, "/api/v1/analyze", `{"symbol":"ETHUSDT","timeframe":"3h"}`); env.Status != http.StatusBadRequest {
		t.Errorf("bad timeframe status = %d", env.Status)
	}
	if len(s.analyzed) != 1 || s.analyzed[0] != "ETHUSDT/1h" {
		t.Errorf("analyzed = %v", s.analyzed)
	}
}

func TestActiveSignals(t *testing.T) {
	s := &fakeSession{signals: []models.TradingSignal{
		{ID: "1", Symbol: "BTCUSDT"},
		{ID: "2", Symbol: "ETHUSDT"},
		{ID: "3", Symbol: "BTCUSDT"},
		{ID: "4", Symbol: "BTCUSDT"},
	}}
	e := newTestServer(s, nil, Options{})

	env := do(t, e, http.MethodGet, "/api/v1/signals/active?symbol=btcusdt&limit=2", "")
	var list struct {
		Rows  []models.TradingSignal `json:"rows"`
		Total int64                  `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 3 || len(list.Rows) != 2 || list.Rows[0].ID != "3" || list.Rows[1].ID != "4" {
		t.Errorf("list = %+v", list)
	}

	if env := do(t, e, http.MethodGet, "/api/v1/signals/active?limit=0", ""); env.Status != http.StatusOK {
		t.Errorf("default limit status = %d", env.Status)
	}
	if env := do(t, e, http.MethodGet, "/api/v1/signals/active?limit=1000", ""); env.Status != http.StatusBadRequest {
		t.Errorf("over limit status = %d", env.Status)
	}
}

func TestPortfolio(t *testing.T) {
	s := &fakeSession{}
	e := newTestServer(s, nil, Options{})
	if env := do(t, e, http.MethodGet, "/api/v1/portfolio", ""); env.Status != http.StatusOK {
		t.Errorf("status = %d", env.Status)
	}
	s.portfolio = errors.New("no tracker")
	if env := do(t, e, http.MethodGet, "/api/v1/portfolio", ""); env.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", env.Status)
	}
}

func TestSendNotification(t *testing.T) {
	sender := &fakeSender{}
	e := newTestServer(&fakeSession{}, sender, Options{})

	if env := do(t, e, http.MethodPost, "/api/v1/notifications/send", `{"message":"hello","urgent":true}`); env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	if len(sender.msgs) != 1 || sender.msgs[0].Title != "CryptoAssist" || !sender.msgs[0].Urgent || sender.msgs[0].Body != "hello" {
		t.Errorf("msgs = %+v", sender.msgs)
	}

	sender.err = errors.New("webhook down")
	if env := do(t, e, http.MethodPost, "/api/v1/notifications/send", `{"message":"hello"}`); env.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", env.Status)
	}

	e = newTestServer(&fakeSession{}, nil, Options{})
	if env := do(t, e, http.MethodPost, "/api/v1/notifications/send", `{"message":"hello"}`); env.Status != http.StatusServiceUnavailable {
		t.Errorf("no sender status = %d, want 503", env.Status)
	}
}

func TestAuthAndRateLimit(t *testing.T) {
	const secret = "s3cret"
	e := newTestServer(&fakeSession{}, nil, Options{
		JWTSecret:   secret,
		JWTIssuer:   "cryptoassist",
		RateLimiter: middleware.NewIPRateLimiter(0.001, 2),
	})

	if env := do(t, e, http.MethodGet, "/api/v1/session", ""); env.Status != http.StatusUnauthorized {
		t.Errorf("no token status = %d", env.Status)
	}
	token, err := middleware.GenerateToken(secret, "cryptoassist", "ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if env := do(t, e, http.MethodGet, "/api/v1/session", "", "Authorization", "Bearer "+token); env.Status != http.StatusOK {
		t.Errorf("token status = %d", env.Status)
	}
	if env := do(t, e, http.MethodGet, "/api/v1/session", "", "Authorization", "Bearer "+token); env.Status != http.StatusTooManyRequests {
		t.Errorf("rate limited status = %d", env.Status)
	}
	if env := do(t, e, http.MethodGet, "/health", ""); env.Status != http.StatusOK {
		t.Errorf("health must stay public, status = %d", env.Status)
	}
}
