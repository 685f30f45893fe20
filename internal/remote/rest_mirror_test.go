package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mirrorRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newMirrorServer(t *testing.T, status int, getBody string) (*httptest.Server, *[]mirrorRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []mirrorRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec := mirrorRequest{Method: r.Method, Path: r.URL.Path, Auth: r.URL.Query().Get("auth")}
		if len(body) > 0 {
			_ = json.Unmarshal(body, &rec.Body)
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(getBody))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestRestMirror_SetSendsServerValue(t *testing.T) {
	srv, reqs := newMirrorServer(t, http.StatusOK, "")
	m := NewRestMirror(srv.URL+"/", "tok", 0, srv.Client())

	err := m.Set(context.Background(), "u 1", Document{"userId": "u 1", "_timestamp": ServerTimestamp})
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	r := (*reqs)[0]
	assert.Equal(t, http.MethodPut, r.Method)
	assert.Equal(t, "/users/u 1.json", r.Path)
	assert.Equal(t, "tok", r.Auth)
	assert.Equal(t, map[string]any{".sv": "timestamp"}, r.Body["_timestamp"])
}

func TestRestMirror_UpdateAndMergePatch(t *testing.T) {
	srv, reqs := newMirrorServer(t, http.StatusOK, "")
	m := NewRestMirror(srv.URL, "", 0, srv.Client())
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, "u1", Document{"a": 1}))
	require.NoError(t, m.Merge(ctx, "u1", Document{"b": 2}))

	require.Len(t, *reqs, 2)
	assert.Equal(t, http.MethodPatch, (*reqs)[0].Method)
	assert.Equal(t, http.MethodPatch, (*reqs)[1].Method)
	assert.Empty(t, (*reqs)[0].Auth)
}

func TestRestMirror_GetNullIsAbsent(t *testing.T) {
	srv, _ := newMirrorServer(t, http.StatusOK, "null")
	m := NewRestMirror(srv.URL, "", 0, srv.Client())

	raw, ok, err := m.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, raw)
}

func TestRestMirror_GetDocument(t *testing.T) {
	srv, _ := newMirrorServer(t, http.StatusOK, `{"userId":"u1"}`)
	m := NewRestMirror(srv.URL, "", 0, srv.Client())

	raw, ok, err := m.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"userId":"u1"}`, string(raw))
}

func TestRestMirror_ErrorStatus(t *testing.T) {
	srv, _ := newMirrorServer(t, http.StatusUnauthorized, `{"error":"Permission denied"}`)
	m := NewRestMirror(srv.URL, "", 0, srv.Client())
	ctx := context.Background()

	assert.ErrorContains(t, m.Set(ctx, "u1", Document{}), "401")
	assert.Error(t, m.Init(ctx))
}

func TestRestMirror_RateLimitHonoursContext(t *testing.T) {
	srv, _ := newMirrorServer(t, http.StatusOK, "")
	m := NewRestMirror(srv.URL, "", 0.001, srv.Client())

	require.NoError(t, m.Set(context.Background(), "u1", Document{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Set(ctx, "u1", Document{}))
}
