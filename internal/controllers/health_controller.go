package controllers

import (
	"jobstreak/internal/broadcast"
	"jobstreak/internal/remote"
	"jobstreak/internal/services"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hako/durafmt"
)

type HealthController struct {
	queue       services.SyncQueueInterface
	broadcaster broadcast.BroadcasterInterface
	state       *remote.State
	startTime   time.Time
}

type healthResponse struct {
	Status            string  `json:"status"`
	Uptime            string  `json:"uptime"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	Observers         int     `json:"observers"`
	PendingSync       bool    `json:"pending_sync"`
	Connected         bool    `json:"connected"`
	RemoteInitialized bool    `json:"remote_initialized"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	pending, err := hc.queue.Peek(r.Context())
	status := "ok"
	if err != nil {
		status = "degraded"
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:            status,
		Uptime:            formatDuration(uptime),
		UptimeSeconds:     uptime.Seconds(),
		Observers:         hc.broadcaster.Count(),
		PendingSync:       pending != nil,
		Connected:         hc.state.Connected(),
		RemoteInitialized: hc.state.Initialized(),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Second {
		return "0 seconds"
	}
	return durafmt.Parse(d).String()
}

func NewHealthController(queue services.SyncQueueInterface, broadcaster broadcast.BroadcasterInterface, state *remote.State) *HealthController {
	return &HealthController{
		queue:       queue,
		broadcaster: broadcaster,
		state:       state,
		startTime:   time.Now(),
	}
}
