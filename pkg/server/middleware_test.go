package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func staticConfig(cfg Config) func() Config {
	return func() Config { return cfg }
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ---------------------------------------------------------------------------
// RequestLog
// ---------------------------------------------------------------------------

func TestRequestLogAdd(t *testing.T) {
	rl := NewRequestLog(10)
	rl.Add(RequestLogEntry{Method: "GET", Path: "/books"})

	entries := rl.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Method != "GET" || entries[0].Path != "/books" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestRequestLogRingBuffer(t *testing.T) {
	rl := NewRequestLog(3)

	for i := 0; i < 5; i++ {
		rl.Add(RequestLogEntry{Path: "/" + string(rune('a'+i))})
	}

	entries := rl.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (ring buffer), got %d", len(entries))
	}
	if entries[0].Path != "/c" || entries[1].Path != "/d" || entries[2].Path != "/e" {
		t.Errorf("expected oldest entries evicted, got %+v", entries)
	}
}

func TestRequestLogEntriesReturnsCopy(t *testing.T) {
	rl := NewRequestLog(10)
	rl.Add(RequestLogEntry{Path: "/orig"})

	entries := rl.Entries()
	entries[0].Path = "/mutated"

	if rl.Entries()[0].Path != "/orig" {
		t.Error("Entries did not return a copy; mutation leaked")
	}
}

func TestRequestLogClear(t *testing.T) {
	rl := NewRequestLog(10)
	rl.Add(RequestLogEntry{Path: "/books"})
	rl.Clear()

	if len(rl.Entries()) != 0 {
		t.Errorf("expected 0 entries after clear, got %d", len(rl.Entries()))
	}
}

// ---------------------------------------------------------------------------
// FaultRegistry
// ---------------------------------------------------------------------------

func TestFaultRegistrySetAndCheck(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/books/1", FaultConfig{StatusCode: 500, Rate: 1.0})

	fault := fr.Check("/books/1")
	if fault == nil {
		t.Fatal("expected fault to be returned")
	}
	if fault.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", fault.StatusCode)
	}
	if fr.Check("/books/2") != nil {
		t.Error("expected nil for non-matching path")
	}
}

func TestFaultRegistrySetDefaultRate(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/books", FaultConfig{StatusCode: 429})

	if fr.Check("/books") == nil {
		t.Fatal("expected fault with default rate=1.0")
	}
}

func TestFaultRegistryRemove(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/books", FaultConfig{StatusCode: 500, Rate: 1.0})

	if !fr.Remove("/books") {
		t.Error("expected Remove to return true for existing fault")
	}
	if fr.Remove("/books") {
		t.Error("expected Remove to return false after already removed")
	}
	if fr.Check("/books") != nil {
		t.Error("expected nil after removal")
	}
}

func TestFaultRegistryAllReturnsCopy(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/a", FaultConfig{StatusCode: 500, Rate: 1.0})

	all := fr.All()
	all["/a"] = FaultConfig{StatusCode: 200}

	if fr.All()["/a"].StatusCode != 500 {
		t.Error("All did not return a copy; mutation leaked")
	}
}

func TestFaultRegistryReset(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/books", FaultConfig{StatusCode: 500, Rate: 1.0})
	fr.Reset()

	if len(fr.All()) != 0 {
		t.Errorf("expected 0 faults after reset, got %d", len(fr.All()))
	}
}

func TestFaultConfigValidate(t *testing.T) {
	valid := []FaultConfig{
		{},
		{StatusCode: 503, Rate: 0.5},
		{Delay: time.Second},
	}
	for _, f := range valid {
		if err := f.Validate(); err != nil {
			t.Errorf("%+v: unexpected error %v", f, err)
		}
	}

	invalid := []FaultConfig{
		{StatusCode: http.StatusBadGateway},
		{StatusCode: 42},
		{StatusCode: 500, Rate: 1.5},
		{Delay: -time.Second},
	}
	for _, f := range invalid {
		if err := f.Validate(); err == nil {
			t.Errorf("%+v: expected error", f)
		}
	}
}

// ---------------------------------------------------------------------------
// Middleware – CORS
// ---------------------------------------------------------------------------

func TestCORSMiddleware(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)
	handler := mw.CORS(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books", nil))

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected Access-Control-Allow-Origin: *")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCORSOptionsRequest(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)

	innerCalled := false
	handler := mw.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/books", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if innerCalled {
		t.Error("expected inner handler NOT to be called for OPTIONS")
	}
}

// ---------------------------------------------------------------------------
// Middleware – RequestLog
// ---------------------------------------------------------------------------

func TestRequestLogMiddleware(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)

	handler := mw.RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/books", nil))

	entries := mw.ReqLog.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Method != "POST" || entries[0].Path != "/books" || entries[0].StatusCode != 201 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Headers != nil {
		t.Error("headers must only be captured in verbose mode")
	}
}

func TestRequestLogMiddlewareVerbose(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{Verbose: true}), slog.Default(), nil)
	handler := mw.RequestLog(http.HandlerFunc(okHandler))

	req := httptest.NewRequest("GET", "/books", nil)
	req.Header.Set("X-Custom", "value")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := mw.ReqLog.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Headers["X-Custom"] != "value" {
		t.Errorf("expected X-Custom=value, got %v", entries[0].Headers)
	}
}

// ---------------------------------------------------------------------------
// Middleware – FaultInjection
// ---------------------------------------------------------------------------

func TestFaultInjectionMiddleware(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)
	mw.Faults.Set("/books", FaultConfig{StatusCode: 503, Rate: 1.0})

	innerCalled := false
	handler := mw.FaultInjection(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books", nil))

	if rec.Code != 503 {
		t.Errorf("expected 503 from fault injection, got %d", rec.Code)
	}
	if innerCalled {
		t.Error("expected inner handler NOT to be called when fault is injected")
	}
}

func TestFaultInjectionWithCustomBody(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)
	mw.Faults.Set("/books/1", FaultConfig{StatusCode: 429, Body: `{"error":"rate_limited"}`, Rate: 1.0})

	handler := mw.FaultInjection(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books/1", nil))

	if rec.Code != 429 {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"rate_limited"}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestFaultInjectionDelayOnly(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)
	mw.Faults.Set("/books", FaultConfig{Delay: 30 * time.Millisecond, Rate: 1.0})

	innerCalled := false
	handler := mw.FaultInjection(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
	}))

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/books", nil))

	if !innerCalled {
		t.Error("a delay-only fault must still reach the handler")
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Error("expected injected delay")
	}
}

// ---------------------------------------------------------------------------
// Middleware – LatencyInjection / RandomFailure
// ---------------------------------------------------------------------------

func TestLatencyInjectionMiddleware(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{Latency: 50 * time.Millisecond}), slog.Default(), nil)
	handler := mw.LatencyInjection(http.HandlerFunc(okHandler))

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/books", nil))

	// 80% of 50ms minus scheduling slack
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected at least ~40ms latency, got %v", elapsed)
	}
}

func TestRandomFailureAlways(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{FailRate: 1.0}), slog.Default(), nil)
	handler := mw.RandomFailure(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 with fail rate 1.0, got %d", rec.Code)
	}
}

func TestRandomFailureNever(t *testing.T) {
	mw := NewMiddleware(staticConfig(Config{}), slog.Default(), nil)
	handler := mw.RandomFailure(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with fail rate 0.0, got %d", rec.Code)
	}
}

func TestMiddlewareReadsConfigPerRequest(t *testing.T) {
	cfg := Config{}
	mw := NewMiddleware(func() Config { return cfg }, slog.Default(), nil)
	handler := mw.RandomFailure(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	cfg.FailRate = 1.0
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/books", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after config change, got %d", rec.Code)
	}
}
