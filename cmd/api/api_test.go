package main

import (
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/library-api/internal/analytics"
	"github.com/aoideee/library-api/internal/catalog"
	"github.com/aoideee/library-api/internal/data"
	"github.com/aoideee/library-api/internal/data/memstore"
	"github.com/aoideee/library-api/internal/directory"
	"github.com/aoideee/library-api/internal/lending"
	"github.com/aoideee/library-api/internal/metrics"
)

var testNow = time.Date(2023, time.October, 20, 9, 30, 0, 0, time.UTC)

func newTestApp(t *testing.T) *applicationDependencies {
	t.Helper()
	clock := func() time.Time { return testNow }

	store := memstore.New(memstore.WithClock(clock))
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	lend := lending.NewService(store, lending.WithClock(clock), lending.WithMetrics(collector))

	var cfg serverConfig
	cfg.environment = "testing"

	return &applicationDependencies{
		config:    cfg,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   collector,
		gatherer:  reg,
		users:     directory.NewService(store, lend, directory.WithClock(clock)),
		books:     catalog.NewService(store, lend, catalog.WithClock(clock)),
		lending:   lend,
		analytics: analytics.NewService(store, analytics.WithClock(clock)),
	}
}

func send(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type bookResponse struct {
	Book data.Book `json:"book"`
}

type checkoutResponse struct {
	Checkout data.Checkout `json:"checkout"`
}

type validationResponse struct {
	Error map[string]string `json:"error"`
}

type messageResponse struct {
	Error string `json:"error"`
}

func TestWalkthrough(t *testing.T) {
	h := newTestApp(t).routes()

	rec := send(t, h, http.MethodPost, "/v1/users", `{"name":"John Doe","email":"john@gmail.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user struct {
		User data.User `json:"user"`
	}
	decode(t, rec, &user)
	assert.Equal(t, int64(1), user.User.ID)
	assert.Equal(t, "2023-10-20", user.User.RegistrationDate.String())

	rec = send(t, h, http.MethodPost, "/v1/books", `{"title":"The Hobbit","author":"J.R.R. Tolkien","isbn":"9780544003415","available_copies":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book bookResponse
	decode(t, rec, &book)
	assert.Equal(t, 1, book.Book.AvailableCopies)

	rec = send(t, h, http.MethodPost, "/v1/checkouts", `{"user_id":1,"book_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var checkout checkoutResponse
	decode(t, rec, &checkout)
	assert.Equal(t, "2023-10-20", checkout.Checkout.CheckoutDate.String())
	assert.Equal(t, "2023-10-27", checkout.Checkout.ReturnDate.String())
	assert.False(t, checkout.Checkout.Returned)
	assert.Nil(t, checkout.Checkout.ReturnedDate)

	rec = send(t, h, http.MethodGet, "/v1/books/1", "")
	decode(t, rec, &book)
	assert.Equal(t, 0, book.Book.AvailableCopies)

	rec = send(t, h, http.MethodPost, "/v1/checkouts", `{"user_id":1,"book_id":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, h, http.MethodGet, "/v1/users/1/books", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var open struct {
		Checkouts []data.CheckoutDetail `json:"checkouts"`
	}
	decode(t, rec, &open)
	require.Len(t, open.Checkouts, 1)
	assert.Equal(t, "The Hobbit", open.Checkouts[0].Book.Title)

	rec = send(t, h, http.MethodPost, "/v1/checkouts/1/return", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &checkout)
	assert.True(t, checkout.Checkout.Returned)
	require.NotNil(t, checkout.Checkout.ReturnedDate)
	assert.Equal(t, "2023-10-20", checkout.Checkout.ReturnedDate.String())

	rec = send(t, h, http.MethodPost, "/v1/checkouts/1/return", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, h, http.MethodGet, "/v1/books/1", "")
	decode(t, rec, &book)
	assert.Equal(t, 1, book.Book.AvailableCopies, "a second return does not add a copy")

	rec = send(t, h, http.MethodPost, "/v1/returns", `{"user_id":1,"book_id":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newTestApp(t).routes()
	require.Equal(t, http.StatusCreated, send(t, h, http.MethodPost, "/v1/users", `{"name":"John Doe","email":"john@gmail.com"}`).Code)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"validation", http.MethodPost, "/v1/users", `{}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/v1/users", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/users", `{"name":"A","email":"a@b.co","age":3}`, http.StatusBadRequest},
		{"two values", http.MethodPost, "/v1/users", `{"name":"A","email":"a@b.co"}{}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/v1/checkouts", "", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/users/abc", "", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/v1/books/0", "", http.StatusBadRequest},
		{"missing user", http.MethodGet, "/v1/users/99", "", http.StatusNotFound},
		{"duplicate email", http.MethodPost, "/v1/users", `{"name":"Johnny","email":"john@gmail.com"}`, http.StatusConflict},
		{"unknown route", http.MethodGet, "/v1/nothing", "", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/v1/books/1", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestValidationBody(t *testing.T) {
	h := newTestApp(t).routes()

	rec := send(t, h, http.MethodPost, "/v1/books", `{"title":"The Hobbit","author":"J.R.R. Tolkien","isbn":"123"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body validationResponse
	decode(t, rec, &body)
	assert.Equal(t, map[string]string{"isbn": "must be 10 or 13 characters long"}, body.Error)

	rec = send(t, h, http.MethodGet, "/v1/search/books", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	decode(t, rec, &body)
	assert.Contains(t, body.Error, "query")
}

func TestStoreFailureHidesDetails(t *testing.T) {
	app := newTestApp(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/books", nil)

	app.serviceErrorResponse(rec, req, data.StoreFailure("list books", assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body messageResponse
	decode(t, rec, &body)
	assert.NotContains(t, body.Error, assert.AnError.Error())
}

func TestSearchAndDeleteAll(t *testing.T) {
	h := newTestApp(t).routes()
	for _, b := range []string{
		`{"title":"The Hobbit","author":"J.R.R. Tolkien","isbn":"9780544003415"}`,
		`{"title":"Dune","author":"Frank Herbert","isbn":"0441013597"}`,
	} {
		require.Equal(t, http.StatusCreated, send(t, h, http.MethodPost, "/v1/books", b).Code)
	}

	rec := send(t, h, http.MethodGet, "/v1/search/books?title=Hobbit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var found struct {
		Books []data.Book `json:"books"`
	}
	decode(t, rec, &found)
	require.Len(t, found.Books, 1)
	assert.Equal(t, "The Hobbit", found.Books[0].Title)

	rec = send(t, h, http.MethodDelete, "/v1/books", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted struct {
		Deleted int64 `json:"deleted"`
	}
	decode(t, rec, &deleted)
	assert.Equal(t, int64(2), deleted.Deleted)
}

func TestAnalyticsExport(t *testing.T) {
	h := newTestApp(t).routes()
	require.Equal(t, http.StatusCreated, send(t, h, http.MethodPost, "/v1/users", `{"name":"John Doe","email":"john@gmail.com"}`).Code)
	require.Equal(t, http.StatusCreated, send(t, h, http.MethodPost, "/v1/books", `{"title":"The Hobbit","author":"J.R.R. Tolkien","isbn":"9780544003415"}`).Code)
	require.Equal(t, http.StatusCreated, send(t, h, http.MethodPost, "/v1/checkouts", `{"user_id":1,"book_id":1}`).Code)

	rec := send(t, h, http.MethodGet, "/v1/analytics?start=2023-10-01&end=2023-10-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary struct {
		Analytics analytics.Summary `json:"analytics"`
	}
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.Analytics.NoOfBorrowings)
	assert.Equal(t, 1, summary.Analytics.NoOfNotReturned)

	rec = send(t, h, http.MethodGet, "/v1/analytics/export?start=2023-10-01&end=2023-10-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="2023-10-01-2023-10-31-borrowing-data.csv"`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0], 21)
	assert.Equal(t, "John Doe", records[1][8])

	rec = send(t, h, http.MethodGet, "/v1/analytics/export/lastmonth/overdue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records, err = csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")

	rec = send(t, h, http.MethodGet, "/v1/analytics?start=2023-13-01", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthcheckAndMetrics(t *testing.T) {
	var cfg serverConfig
	cfg.environment = "testing"
	app := newApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), memstore.New(), prometheus.NewRegistry())
	h := app.routes()

	rec := send(t, h, http.MethodGet, "/v1/healthcheck", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status     string            `json:"status"`
		SystemInfo map[string]string `json:"system_info"`
	}
	decode(t, rec, &health)
	assert.Equal(t, "available", health.Status)
	assert.Equal(t, "testing", health.SystemInfo["environment"])

	rec = send(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `library_http_status_total{status_code="200"} 1`)
}

func TestLogRequest_RequestID(t *testing.T) {
	h := newTestApp(t).routes()

	rec := send(t, h, http.MethodGet, "/v1/healthcheck", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/v1/healthcheck", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t)
	app.config.limiter.enabled = true
	app.config.limiter.rps = 1
	app.config.limiter.burst = 1
	h := app.routes()

	assert.Equal(t, http.StatusOK, send(t, h, http.MethodGet, "/v1/healthcheck", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(t, h, http.MethodGet, "/v1/healthcheck", "").Code)
}

func TestRecoverPanic(t *testing.T) {
	app := newTestApp(t)
	h := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := send(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestParseFlags_EnvDefaults(t *testing.T) {
	t.Setenv("LIBRARY_PORT", "5050")
	t.Setenv("LIBRARY_STORE", "memory")
	t.Setenv("LIBRARY_LIMITER_ENABLED", "false")

	cfg := parseFlags(flag.NewFlagSet("api", flag.ContinueOnError), []string{"-loan-days", "14"})

	assert.Equal(t, 5050, cfg.port)
	assert.Equal(t, "memory", cfg.store)
	assert.False(t, cfg.limiter.enabled)
	assert.Equal(t, 14, cfg.loanDays)
	assert.Equal(t, "postgres", cfg.db.driver)
	assert.Equal(t, 15*time.Minute, cfg.db.maxIdleTime)
}

func TestValidateConfig(t *testing.T) {
	cfg := parseFlags(flag.NewFlagSet("api", flag.ContinueOnError), nil)
	require.NoError(t, validateConfig(cfg))

	cfg.store = "sqlite"
	cfg.db.driver = "mysql"
	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Equal(t, "invalid configuration: -db-driver must be postgres or pgx; -store must be postgres or memory", err.Error())
}
