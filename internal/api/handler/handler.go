// Package handler implements the JSON API handlers.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tracelens/tracelens/internal/engine"
	"github.com/tracelens/tracelens/internal/query"
	"github.com/tracelens/tracelens/internal/scheduler"
)

type Handler struct {
	engine *engine.Engine
}

func New(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// Services returns the known services with operation counts.
func (h *Handler) Services(c *gin.Context) {
	services, err := h.engine.GetServices(c.Request.Context())
	if err != nil {
		log.Error("failed to get services", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get services"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": services})
}

// Operations returns the operations recorded for a service.
func (h *Handler) Operations(c *gin.Context) {
	service := c.Param("service")
	ops, err := h.engine.GetOperations(c.Request.Context(), service)
	if err != nil {
		log.Error("failed to get operations", "service", service, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get operations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ops})
}

// Search runs a trace search. start and end are epoch microseconds, matching
// the query backend's own API.
func (h *Handler) Search(c *gin.Context) {
	params := query.SearchParams{
		Service:   c.Query("service"),
		Operation: c.Query("operation"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit64, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit, err := safecast.ToInt(limit64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		params.Limit = limit
	}

	var err error
	if params.Start, err = parseMicros(c.Query("start")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	if params.End, err = parseMicros(c.Query("end")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
		return
	}

	summaries, err := h.engine.SearchTraces(c.Request.Context(), params)
	if err != nil {
		log.Error("failed to search traces", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to search traces"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// Trace returns the detail view of a single trace.
func (h *Handler) Trace(c *gin.Context) {
	traceID := c.Param("id")
	detail, err := h.engine.GetTraceDetail(c.Request.Context(), traceID)
	if err != nil {
		if engine.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
			return
		}
		log.Error("failed to get trace", "traceID", traceID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get trace"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

type pinRequest struct {
	TraceID string `json:"traceID" binding:"required"`
	Title   string `json:"title"`
	Note    string `json:"note"`
}

// CreatePin pins a trace.
func (h *Handler) CreatePin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "traceID is required"})
		return
	}

	pin, err := h.engine.PinTrace(c.Request.Context(), req.TraceID, req.Title, req.Note)
	if err != nil {
		switch {
		case err == engine.ErrAlreadyPinned:
			c.JSON(http.StatusConflict, gin.H{"error": "trace already pinned"})
		case engine.IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		default:
			log.Error("failed to pin trace", "traceID", req.TraceID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pin trace"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": pin})
}

// ListPins returns all pinned traces.
func (h *Handler) ListPins(c *gin.Context) {
	pins, err := h.engine.ListPins(c.Request.Context())
	if err != nil {
		log.Error("failed to list pins", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pins"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pins})
}

// DeletePin removes a pin.
func (h *Handler) DeletePin(c *gin.Context) {
	if err := h.engine.UnpinTrace(c.Request.Context(), c.Param("id")); err != nil {
		log.Error("failed to unpin trace", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unpin trace"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RecentSearches returns the latest recorded search queries.
func (h *Handler) RecentSearches(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	searches, err := h.engine.RecentSearches(c.Request.Context(), limit)
	if err != nil {
		log.Error("failed to list recent searches", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recent searches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": searches})
}

// RunJob manually triggers a scheduled job. The run itself is asynchronous.
func (h *Handler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RunJob(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Error("failed to trigger job", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to trigger job"})
		return
	}
	c.Status(http.StatusAccepted)
}

// Refresh forces a service list refresh.
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.engine.RefreshServices(c.Request.Context()); err != nil {
		log.Error("failed to refresh services", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to refresh services"})
		return
	}
	c.Status(http.StatusNoContent)
}

func parseMicros(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us), nil
}
