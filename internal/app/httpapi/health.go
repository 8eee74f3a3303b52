package httpapi

import (
	"context"
	"net/http"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/travelties/service_layer/internal/httputil"
)

var startedAt = time.Now()

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type hostStats struct {
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	Load1         float64 `json:"load1"`
	Load5         float64 `json:"load5"`
	Load15        float64 `json:"load15"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthDetails pings the store and cache and reports host load. Any failed
// check turns the response into a 503.
func (h *handler) healthDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]checkResult{
		"store": probe(ctx, h.app.Store.Ping),
		"cache": probe(ctx, h.app.Cache.Ping),
	}
	status, code := "ok", http.StatusOK
	for _, c := range checks {
		if c.Status != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	body := map[string]interface{}{
		"status":     status,
		"checks":     checks,
		"uptime":     time.Since(startedAt).Round(time.Second).String(),
		"goroutines": goruntime.NumGoroutine(),
	}
	if stats, err := collectHost(ctx); err == nil {
		body["host"] = stats
	} else {
		h.log.WithError(err).Debug("host stats unavailable")
	}
	httputil.WriteJSON(w, code, body)
}

func probe(ctx context.Context, ping func(context.Context) error) checkResult {
	start := time.Now()
	err := ping(ctx)
	res := checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
	}
	return res
}

func collectHost(ctx context.Context) (hostStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return hostStats{}, err
	}
	stats := hostStats{MemoryTotal: vm.Total, MemoryUsed: vm.Used, MemoryPercent: vm.UsedPercent}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.Load1, stats.Load5, stats.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return stats, nil
}
