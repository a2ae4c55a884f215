package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/log"
	"github.com/chrissnell/moonshade/internal/store"
	"github.com/chrissnell/moonshade/pkg/config"
	"github.com/chrissnell/moonshade/pkg/lunar"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "moonshade.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ctrl, err := NewController(ctx, &sync.WaitGroup{},
		config.ServerData{},
		config.RenderData{Size: 64, Workers: 2, Seed: 7},
		st,
		content.NewServiceWithGenerator(nil, st),
		zap.NewNop().Sugar())
	require.NoError(t, err)
	ctrl.handlers.now = func() time.Time { return time.Date(2024, 4, 8, 12, 0, 0, 0, time.UTC) }
	return ctrl
}

func do(t *testing.T, ctrl *Controller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ctrl.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewControllerDefaults(t *testing.T) {
	ctrl := newTestController(t)
	assert.Equal(t, "0.0.0.0:8080", ctrl.Server.Addr)

	_, err := NewController(context.Background(), &sync.WaitGroup{}, config.ServerData{}, config.RenderData{}, nil, nil, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestGetPhase(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/phase?date=2000-01-06", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	resp := decode[PhaseResponse](t, rec)
	assert.Equal(t, "2000-01-06", resp.Date)
	assert.Equal(t, "New Moon", resp.Name)
	assert.True(t, resp.Age > lunar.SynodicMonth-1 || resp.Age < 1, "age %.2f", resp.Age)
	assert.Less(t, resp.Illumination, 0.05)
	assert.Nil(t, resp.Sun)
	assert.Nil(t, resp.Orientation)
	assert.False(t, resp.Favorite)
}

func TestGetPhaseDefaultsToNow(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/phase", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-04-08", decode[PhaseResponse](t, rec).Date)
}

func TestGetPhaseRFC3339KeepsLocation(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/phase?date=2024-04-08T23:30:00-07:00", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-04-08", decode[PhaseResponse](t, rec).Date)
}

func TestGetPhaseDateRange(t *testing.T) {
	ctrl := newTestController(t)

	tests := []struct {
		date   string
		status int
	}{
		{"1925-01-01", http.StatusOK},
		{"2125-12-31", http.StatusOK},
		{"1924-12-31", http.StatusBadRequest},
		{"2126-01-01", http.StatusBadRequest},
		{"1900-06-15T00:00:00Z", http.StatusBadRequest},
		{"2024-02-30", http.StatusBadRequest},
		{"yesterday", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			rec := do(t, ctrl, http.MethodGet, "/phase?date="+tt.date, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusBadRequest {
				assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
			}
		})
	}
}

func TestGetPhaseWithLocation(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/phase?date=2024-06-21&lat=51.5&lon=-0.13", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[PhaseResponse](t, rec)
	require.NotNil(t, resp.Sun)
	require.NotNil(t, resp.Orientation)
	assert.True(t, resp.Sun.Rises)
	assert.True(t, resp.Sun.Sunrise.Before(resp.Sun.Sunset))
	assert.Greater(t, resp.Sun.DayLength, 16*time.Hour)

	polar := decode[PhaseResponse](t, do(t, ctrl, http.MethodGet, "/phase?date=2024-06-21&lat=78&lon=15", ""))
	require.NotNil(t, polar.Sun)
	assert.False(t, polar.Sun.Rises)

	for _, q := range []string{"lat=10", "lon=10", "lat=95&lon=0", "lat=0&lon=181", "lat=x&lon=0"} {
		rec := do(t, ctrl, http.MethodGet, "/phase?date=2024-06-21&"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetPhaseObserverFromConfig(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.renderConfig.Observer = &config.PointData{Lat: 35.68, Lon: 139.69}

	resp := decode[PhaseResponse](t, do(t, ctrl, http.MethodGet, "/phase?date=2024-03-20", ""))
	require.NotNil(t, resp.Orientation)
	assert.NotZero(t, resp.Orientation.ParallacticAngle)
}

func TestGetPhaseMsgPack(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/phase?date=2000-01-20&format=msgpack", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Full Moon", m["name"])
	assert.Equal(t, "2000-01-20", m["date"])
}

func TestGetNames(t *testing.T) {
	ctrl := newTestController(t)

	names := decode[[]lunar.NamedPhase](t, do(t, ctrl, http.MethodGet, "/names", ""))
	require.Len(t, names, 14)
	assert.Equal(t, "New Moon", names[0].Name)
}

func TestGetMoonPNG(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/moon.png?date=2024-01-18&size=96&seed=3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 96, img.Bounds().Dx())

	// default size comes from the render config
	rec = do(t, ctrl, http.MethodGet, "/moon.png?date=2024-01-18&lat=-33.9&lon=151.2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	for _, q := range []string{"size=0", "size=5000", "size=big", "seed=x", "date=1800-01-01"} {
		rec := do(t, ctrl, http.MethodGet, "/moon.png?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRendererReuse(t *testing.T) {
	ctrl := newTestController(t)
	h := ctrl.handlers

	assert.Same(t, h.renderer(1), h.renderer(1))
	assert.NotSame(t, h.renderer(1), h.renderer(2))

	for seed := int64(0); seed < maxRenderers*2; seed++ {
		h.renderer(seed)
	}
	assert.LessOrEqual(t, len(h.renderers), maxRenderers)
}

func TestGetTransitionGIF(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/transition.gif?from=2024-01-11&to=2024-01-25&frames=4&size=48", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))

	anim, err := gif.DecodeAll(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, anim.Image, 4)
	assert.Equal(t, defaultGIFDelay, anim.Delay[0])

	for _, q := range []string{"from=2024-01-11", "to=2024-01-11", "from=2024-01-11&to=2024-01-12&frames=1", "from=2024-01-11&to=2024-01-12&size=1024"} {
		rec := do(t, ctrl, http.MethodGet, "/transition.gif?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetContent(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/content?date=2024-02-24&lat=47.6&lon=-122.3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ContentResponse](t, rec)
	assert.Equal(t, "2024-02-24", resp.Date)
	assert.Equal(t, content.SourceDummy, resp.Source)
	assert.NotEmpty(t, resp.Trivia)
	assert.NotEmpty(t, resp.Message)
	assert.Contains(t, resp.Observation, "The Sun sets at")

	again := decode[ContentResponse](t, do(t, ctrl, http.MethodGet, "/content?date=2024-02-24&lat=47.6&lon=-122.3", ""))
	assert.Equal(t, resp.Trivia, again.Trivia)
}

func TestHistoryEndpoints(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodPost, "/history", `{"date":"2000-01-20"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[store.HistoryEntry](t, rec)
	assert.Equal(t, "Full Moon", entry.PhaseName)
	assert.NotEmpty(t, entry.ID)

	do(t, ctrl, http.MethodPost, "/history", `{"date":"2000-01-14"}`)
	do(t, ctrl, http.MethodPost, "/history", `{"date":"2000-01-20"}`)

	h := decode[HistoryResponse](t, do(t, ctrl, http.MethodGet, "/history", ""))
	require.Len(t, h.History, 2)
	assert.Equal(t, "2000-01-20", h.History[0].Date)
	assert.Equal(t, "2000-01-14", h.History[1].Date)

	assert.Equal(t, http.StatusBadRequest, do(t, ctrl, http.MethodPost, "/history", `{"date":`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, ctrl, http.MethodPost, "/history", `{"date":"1800-01-01"}`).Code)
}

func TestFavoriteEndpoints(t *testing.T) {
	ctrl := newTestController(t)

	require.Equal(t, http.StatusCreated, do(t, ctrl, http.MethodPost, "/favorites", `{"date":"2024-02-24"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, ctrl, http.MethodPost, "/favorites", `{"date":"2024-02-24"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, ctrl, http.MethodPost, "/favorites", `{"date":"2024-03-25"}`).Code)

	favs := decode[FavoritesResponse](t, do(t, ctrl, http.MethodGet, "/favorites", ""))
	assert.Equal(t, []string{"2024-02-24", "2024-03-25"}, favs.Favorites)

	phase := decode[PhaseResponse](t, do(t, ctrl, http.MethodGet, "/phase?date=2024-02-24", ""))
	assert.True(t, phase.Favorite)

	assert.Equal(t, http.StatusNoContent, do(t, ctrl, http.MethodDelete, "/favorites/2024-02-24", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, ctrl, http.MethodDelete, "/favorites/2024-02-24", "").Code)

	favs = decode[FavoritesResponse](t, do(t, ctrl, http.MethodGet, "/favorites", ""))
	assert.Equal(t, []string{"2024-03-25"}, favs.Favorites)
}

func TestClearData(t *testing.T) {
	ctrl := newTestController(t)

	do(t, ctrl, http.MethodPost, "/history", `{"date":"2024-02-24"}`)
	do(t, ctrl, http.MethodPost, "/favorites", `{"date":"2024-02-24"}`)

	require.Equal(t, http.StatusNoContent, do(t, ctrl, http.MethodDelete, "/data", "").Code)

	assert.Empty(t, decode[HistoryResponse](t, do(t, ctrl, http.MethodGet, "/history", "")).History)
	assert.Empty(t, decode[FavoritesResponse](t, do(t, ctrl, http.MethodGet, "/favorites", "")).Favorites)
}

func TestSettings(t *testing.T) {
	ctrl := newTestController(t)

	s := decode[SettingsResponse](t, do(t, ctrl, http.MethodGet, "/settings", ""))
	assert.False(t, s.UsesModel)

	rec := do(t, ctrl, http.MethodPut, "/settings/api-key", `{"api_key":"   "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[SettingsResponse](t, rec).UsesModel)

	v, err := ctrl.Store.Setting(context.Background(), store.SettingAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	assert.Equal(t, http.StatusBadRequest, do(t, ctrl, http.MethodPut, "/settings/api-key", "not json").Code)
}

type failingSettingsStore struct {
	store.Store
}

func (failingSettingsStore) SaveSetting(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestSetAPIKeySaveFailureKeepsService(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Store = failingSettingsStore{ctrl.Store}

	rec := do(t, ctrl, http.MethodPut, "/settings/api-key", `{"api_key":"new-key"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, ctrl.Content.UsesModel(), "service switched to a key that was never saved")
}

func TestHTTPLogs(t *testing.T) {
	ctrl := newTestController(t)

	do(t, ctrl, http.MethodGet, "/phase?date=2024-01-01", "")
	rec := do(t, ctrl, http.MethodGet, "/logs/http?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := decode[[]log.HTTPLogEntry](t, rec)
	require.NotEmpty(t, entries)
	assert.LessOrEqual(t, len(entries), 5)
	assert.Equal(t, "/phase?date=2024-01-01", entries[0].Path)
	assert.Equal(t, http.StatusOK, entries[0].Status)

	assert.Equal(t, http.StatusBadRequest, do(t, ctrl, http.MethodGet, "/logs/http?limit=0", "").Code)
}

func TestServeIndex(t *testing.T) {
	ctrl := newTestController(t)

	rec := do(t, ctrl, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/moon.png")
}

func TestParseDate(t *testing.T) {
	h := newTestController(t).handlers

	tm, date, err := h.parseDate("2024-04-08")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-08", date)
	assert.Equal(t, time.Date(2024, 4, 8, 12, 0, 0, 0, time.UTC), tm)

	_, _, err = h.parseDate("2125-12-31T23:59:59Z")
	assert.NoError(t, err)
	_, _, err = h.parseDate("1924-12-31T23:59:59Z")
	assert.ErrorIs(t, err, errDateRange)
}

func BenchmarkGetMoonPNG(b *testing.B) {
	st, err := store.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.ServerData{},
		config.RenderData{Size: 200}, st, content.NewServiceWithGenerator(nil, nil), zap.NewNop().Sugar())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		ctrl.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/moon.png?date=2024-01-18", nil))
		if rec.Code != http.StatusOK {
			b.Fatalf("status %d", rec.Code)
		}
	}
}
