package controllers

import (
	"context"
	"errors"
	"io"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/monitor"
	"jobstreak/internal/providers"
	"jobstreak/internal/router"
	"net/http"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

type ApiController struct {
	logger      providers.Logger
	router      router.RouterInterface
	cache       providers.CacheProviderInterface
	broadcaster broadcast.BroadcasterInterface
	monitor     monitor.ReconnectMonitorInterface
}

func NewApiController(
	logger providers.Logger,
	router router.RouterInterface,
	cache providers.CacheProviderInterface,
	broadcaster broadcast.BroadcasterInterface,
	monitor monitor.ReconnectMonitorInterface,
) *ApiController {
	return &ApiController{
		logger:      logger,
		router:      router,
		cache:       cache,
		broadcaster: broadcaster,
		monitor:     monitor,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		var he *httpError
		if errors.As(err, &he) {
			http.Error(w, he.msg, he.status)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// Message accepts one intent envelope and answers with its Response. Failures of the
// intent itself are reported in the body, not the status code.
func (ac *ApiController) Message(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ac.router.HandleRaw(r.Context(), body))
}

func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("userId")
	if uid == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, providers.StatsViewKey(uid), func() (any, error) {
		resp := ac.router.Handle(r.Context(), router.GetStats{UserID: uid})
		if !resp.Success {
			return nil, &httpError{status: http.StatusNotFound, msg: resp.Message}
		}
		return resp, nil
	})
}

type connectivityPayload struct {
	Online *bool `json:"online"`
}

// Connectivity receives online/offline events from the host platform.
func (ac *ApiController) Connectivity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload connectivityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Online == nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.monitor.PlatformEvent(*payload.Online)
	w.WriteHeader(http.StatusAccepted)
}

// Observe upgrades to a websocket, registers it for change events and answers intents
// sent over it until the client goes away.
func (ac *ApiController) Observe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		ac.logger.Warnf(providers.TypeBroadcast, "Observer upgrade failed: %s", err)
		return
	}
	obs := broadcast.NewWebsocketObserver(conn)
	ac.broadcaster.Register(obs)
	defer ac.broadcaster.Unregister(obs.ID())
	ac.logger.Debugf(providers.TypeBroadcast, "Observer %s connected", obs.ID())

	err = obs.Serve(r.Context(), func(ctx context.Context, msg []byte) any {
		return ac.router.HandleRaw(ctx, msg)
	})
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		ac.logger.Debugf(providers.TypeBroadcast, "Observer %s closed: %v", obs.ID(), err)
	}
	_ = obs.Close("bye")
}
