package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

// handleHealth reports liveness: database reachable and the ledger
// bootstrapped.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	status := http.StatusOK
	if s.db != nil {
		if err := s.db.QuickCheck(ctx); err != nil {
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	} else {
		dbStatus = "disabled"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":   statusWord(status == http.StatusOK),
		"database": dbStatus,
		"loaded":   s.ledger.Loaded(),
	})
}

func statusWord(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

// handleSystemStatus reports host and process stats alongside tracker
// state. Metric collection failures degrade to zero values rather than
// failing the request.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var cpuPercent float64
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = domain.Round2(percents[0])
	}

	var memUsedPercent float64
	var memUsedMB, memTotalMB uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsedPercent = domain.Round2(vm.UsedPercent)
		memUsedMB = vm.Used / 1024 / 1024
		memTotalMB = vm.Total / 1024 / 1024
	}

	var diskUsedPercent float64
	if du, err := disk.Usage("/"); err == nil {
		diskUsedPercent = domain.Round2(du.UsedPercent)
	}

	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptimeSeconds": int64(time.Since(s.startTime).Seconds()),
		"cpuPercent":    cpuPercent,
		"memory": map[string]interface{}{
			"usedPercent": memUsedPercent,
			"usedMB":      memUsedMB,
			"totalMB":     memTotalMB,
		},
		"diskUsedPercent": diskUsedPercent,
		"process": map[string]interface{}{
			"goroutines":  runtime.NumGoroutine(),
			"heapAllocMB": rt.HeapAlloc / 1024 / 1024,
		},
		"tracker": map[string]interface{}{
			"positions":  len(s.ledger.Positions()),
			"refreshing": s.ledger.Refreshing(),
		},
	})
}
