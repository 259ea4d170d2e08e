package handler

import (
	"net/http"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	tracehumanize "github.com/tracelens/tracelens/internal/humanize"
)

var startTime = time.Now()

// Status reports server health, host stats, cache stats and scheduled jobs.
func (h *Handler) Status(c *gin.Context) {
	status := gin.H{
		"uptime":     tracehumanize.FormatDuration(time.Since(startTime).Microseconds()),
		"startedAt":  tracehumanize.FormatDatetime(startTime.UnixMicro()),
		"cacheStats": h.engine.CacheStats(),
		"jobs":       h.engine.Jobs(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory"] = gin.H{
			"used":        humanize.Bytes(vm.Used),
			"total":       humanize.Bytes(vm.Total),
			"usedPercent": vm.UsedPercent,
		}
	} else {
		log.Debug("failed to read memory stats", "error", err)
	}

	if info, err := host.Info(); err == nil {
		if uptimeSec, err := safecast.ToInt64(info.Uptime); err == nil {
			status["host"] = gin.H{
				"hostname": info.Hostname,
				"os":       info.OS,
				"uptime":   tracehumanize.FormatDuration(uptimeSec * 1_000_000),
			}
		}
	} else {
		log.Debug("failed to read host info", "error", err)
	}

	c.JSON(http.StatusOK, status)
}
