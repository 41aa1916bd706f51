package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "RecoBoard/internal/domain/models"
	domrepo "RecoBoard/internal/domain/repository"
	"RecoBoard/internal/repository"
	"RecoBoard/internal/service/feed"
	"RecoBoard/internal/service/ratelimit"
	"RecoBoard/internal/services/presentation"
	"RecoBoard/internal/services/window"
	"RecoBoard/internal/usecase"
	pkgcache "RecoBoard/pkg/cache"
	xlogger "RecoBoard/pkg/logger"
)

var kst = time.FixedZone("KST", 9*60*60)

type presentCall struct {
	cap    int
	expand bool
}

type fakePresenter struct {
	calls []presentCall
	err   error
	now   time.Time
}

func (p *fakePresenter) Now() time.Time { return p.now }

func (p *fakePresenter) Present(_ context.Context, now time.Time, displayCap int, expand bool) (*models.Presentation, error) {
	p.calls = append(p.calls, presentCall{cap: displayCap, expand: expand})
	if p.err != nil {
		return nil, p.err
	}
	return &models.Presentation{
		SnapshotID:  "snap-1",
		AsOf:        now,
		TradingDate: "2024-05-06",
		Window:      models.WindowAfterCutoff,
		Banner:      models.BannerMaintainedAfterCutoff,
		Sections: models.NewSectionedViewModel(
			[]models.Record{{InstrumentID: "005930", Status: models.StatusActive}},
			nil, 2, 20),
		Digest: models.DailyDigest{NewToday: []models.Record{}, ChangedToday: []models.Record{}},
		Cards:  []models.Card{},
	}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestPresentationEndpoint(t *testing.T) {
	p := &fakePresenter{now: time.Date(2024, 5, 6, 17, 0, 0, 0, kst)}
	e := echo.New()
	NewPresentationHandler(xlogger.Nop(), p).RegisterRoutes(e)

	rec, env := do(t, e, http.MethodGet, "/api/presentation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=15", rec.Header().Get(echo.HeaderCacheControl))
	var out models.Presentation
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "snap-1", out.SnapshotID)
	assert.Equal(t, models.BannerMaintainedAfterCutoff, out.Banner)
	assert.Equal(t, 2, out.Sections.ArchivedCount)

	_, _ = do(t, e, http.MethodGet, "/api/presentation?cap=0", "")
	_, _ = do(t, e, http.MethodGet, "/api/presentation?cap=5&expand=true", "")
	assert.Equal(t, []presentCall{{cap: -1}, {cap: 0}, {cap: 5, expand: true}}, p.calls)
}

func TestPresentationSectionsEndpoint(t *testing.T) {
	p := &fakePresenter{now: time.Now()}
	e := echo.New()
	NewPresentationHandler(xlogger.Nop(), p).RegisterRoutes(e)

	rec, env := do(t, e, http.MethodGet, "/api/presentation/sections?cap=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var vm models.SectionedViewModel
	require.NoError(t, json.Unmarshal(env.Data, &vm))
	assert.Equal(t, 1, vm.ActiveTotal)
	assert.Equal(t, 2, vm.ArchivedCount)
	assert.Equal(t, []presentCall{{cap: 3}}, p.calls)
}

func TestPresentationRejectsBadCap(t *testing.T) {
	p := &fakePresenter{}
	e := echo.New()
	NewPresentationHandler(xlogger.Nop(), p).RegisterRoutes(e)

	rec, _ := do(t, e, http.MethodGet, "/api/presentation?cap=-2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/presentation?cap=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.calls)
}

func TestPresentationErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no snapshot", domrepo.ErrNoSnapshot, http.StatusServiceUnavailable, "ERR_UNAVAILABLE"},
		{"feed down", fmt.Errorf("initial feed fetch: %w", feed.ErrUnavailable), http.StatusServiceUnavailable, "ERR_UNAVAILABLE"},
		{"contract", &presentation.ContractError{Anomalies: []models.Anomaly{{Kind: "missing_status"}}}, http.StatusBadGateway, "ERR_UPSTREAM"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			NewPresentationHandler(xlogger.Nop(), &fakePresenter{err: tt.err}).RegisterRoutes(e)

			rec, env := do(t, e, http.MethodGet, "/api/presentation", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, env.Status)
			assert.Contains(t, string(env.Data), tt.code)
		})
	}
}

func newNoticeEcho(t *testing.T, limit RateLimit) *echo.Echo {
	t.Helper()
	mem := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	svc := usecase.NewNoticeService(
		repository.NewCacheNoticeStore(mem),
		window.NewResolver(kst, 16*time.Hour),
		nil,
		time.Hour,
	)
	e := echo.New()
	NewNoticeHandler(xlogger.Nop(), svc, ratelimit.New(), limit).RegisterRoutes(e)
	return e
}

func TestNoticeDismissAndStatus(t *testing.T) {
	e := newNoticeEcho(t, RateLimit{})

	rec, env := do(t, e, http.MethodPost, "/api/notices/dismiss",
		`{"user_id":"u1","notice_id":"cutoff-banner","window_id":"20240506-AFTER_CUTOFF"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var st noticeState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Dismissed)
	assert.Equal(t, "20240506-AFTER_CUTOFF", st.WindowID)

	rec, env = do(t, e, http.MethodGet, "/api/notices/status?user_id=u1&notice_id=cutoff-banner&window_id=20240506-AFTER_CUTOFF", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Dismissed)

	rec, env = do(t, e, http.MethodGet, "/api/notices/status?user_id=u1&notice_id=cutoff-banner&window_id=20240507-AFTER_CUTOFF", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.Dismissed)
}

func TestNoticeDismissValidation(t *testing.T) {
	e := newNoticeEcho(t, RateLimit{})

	rec, env := do(t, e, http.MethodPost, "/api/notices/dismiss", `{"notice_id":"n"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_REQUIRED")

	rec, _ = do(t, e, http.MethodPost, "/api/notices/dismiss", `{"user_id":"   ","notice_id":"n"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/notices/status?user_id=u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoticeDismissRateLimited(t *testing.T) {
	e := newNoticeEcho(t, RateLimit{Burst: 2, PerSecond: 0.001})
	body := `{"user_id":"u1","notice_id":"n1"}`

	rec, _ := do(t, e, http.MethodPost, "/api/notices/dismiss", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/notices/dismiss", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/notices/dismiss", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// reads are not limited
	for i := 0; i < 5; i++ {
		rec, _ = do(t, e, http.MethodGet, "/api/notices/status?user_id=u1&notice_id=n1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	healthy := true
	e := echo.New()
	NewHealthHandler(map[string]HealthCheck{
		"clickhouse": func(context.Context) error { return nil },
		"redis": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("connection refused")
		},
	}).RegisterRoutes(e)

	rec, env := do(t, e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"clickhouse":"ok","redis":"ok"}}`, string(env.Data))

	healthy = false
	rec, env = do(t, e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"clickhouse":"ok","redis":"connection refused"}}`, string(env.Data))
}
