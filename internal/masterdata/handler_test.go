package masterdata

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The /all routes are answerable from the redis cache alone, so the handler is
// testable without a database by priming the cache first.
func newCachedHandler(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewService(nil, NewListCache(rdb, time.Minute), nil)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/master", h.MountRoutes)
	return r, mr
}

func TestAllRoutesServeCachedPayload(t *testing.T) {
	handler, mr := newCachedHandler(t)

	seed := map[string]string{
		"masterdata:all:countries": `[{"id":1,"name":"India"}]`,
		"masterdata:all:states":    `[{"id":5,"name":"Karnataka"}]`,
		"masterdata:all:cities":    `[{"id":9,"name":"Bengaluru"}]`,
		"masterdata:all:floors":    `[{"id":2,"name":"Ground"}]`,
		"masterdata:all:taxes":     `[{"id":4,"name":"CGST 9"}]`,
	}
	for key, payload := range seed {
		require.NoError(t, mr.Set(key, payload))
	}

	cases := map[string]string{
		"/master/countries/all": "India",
		"/master/states/all":    "Karnataka",
		"/master/cities/all":    "Bengaluru",
		"/master/floors/all":    "Ground",
		"/master/taxes/all":     "CGST 9",
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json", path)
	}
}

func TestRawJSONMapsErrors(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	rec := httptest.NewRecorder()
	h.rawJSON(rec, []byte(`[]`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())

	rec = httptest.NewRecorder()
	h.rawJSON(rec, nil, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
