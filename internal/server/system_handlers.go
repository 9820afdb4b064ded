package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth handles GET /api/system/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.systemStats()

	counts, err := s.cfg.Repository.CountByStatus()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count runs")
		counts = map[string]int{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"goroutines":     runtime.NumGoroutine(),
		"queue_depth":    s.cfg.Pool.Depth(),
		"subscribers":    s.cfg.Bus.Subscribers(),
		"runs":           counts,
		"backends":       s.cfg.Backends.Names(),
		"ansatzes":       s.cfg.Ansatzes.Names(),
	})
}

// systemStats samples CPU over 100ms so health checks stay fast.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
