package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

const defaultEventLimit = 50

// StatsProvider is the part of core.Hub the monitor reads from.
type StatsProvider interface {
	Stats(ctx context.Context) (core.Stats, error)
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClientsResponse lists connected clients.
type ClientsResponse struct {
	Clients  []core.ClientInfo `json:"clients"`
	Count    int               `json:"count"`
	Capacity int               `json:"capacity"`
}

// BansResponse lists banned addresses in ban order.
type BansResponse struct {
	Bans  []string `json:"bans"`
	Count int      `json:"count"`
}

// BanEventsResponse lists audited ban events, newest first.
type BanEventsResponse struct {
	Events []*store.BanEvent `json:"events"`
}

// MonitorHandlers serves read-only views of the chat server.
type MonitorHandlers struct {
	stats StatsProvider
	audit store.AuditStore
	log   *zerolog.Logger
}

// NewMonitorHandlers creates the handlers. audit may be nil.
func NewMonitorHandlers(stats StatsProvider, audit store.AuditStore, logger *zerolog.Logger) *MonitorHandlers {
	return &MonitorHandlers{stats: stats, audit: audit, log: logger}
}

// Health reports liveness.
// GET /health
func (h *MonitorHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListClients returns connected clients.
// GET /api/clients
func (h *MonitorHandlers) ListClients(c *gin.Context) {
	st, ok := h.snapshot(c)
	if !ok {
		return
	}
	clients := st.Clients
	if clients == nil {
		clients = []core.ClientInfo{}
	}
	c.JSON(http.StatusOK, ClientsResponse{Clients: clients, Count: len(clients), Capacity: st.Capacity})
}

// ListBans returns the active ban list.
// GET /api/bans
func (h *MonitorHandlers) ListBans(c *gin.Context) {
	st, ok := h.snapshot(c)
	if !ok {
		return
	}
	bans := st.Bans
	if bans == nil {
		bans = []string{}
	}
	c.JSON(http.StatusOK, BansResponse{Bans: bans, Count: len(bans)})
}

// ListBanEvents returns audited ban events.
// GET /api/ban-events?limit=50&ip=10.0.0.5
func (h *MonitorHandlers) ListBanEvents(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "audit store is disabled"})
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	var (
		events []*store.BanEvent
		err    error
	)
	if raw := c.Query("ip"); raw != "" {
		ip, ipErr := core.NormalizeIP(raw)
		if ipErr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid ip address"})
			return
		}
		events, err = h.audit.ListBanEventsForIP(c.Request.Context(), ip, limit)
	} else {
		events, err = h.audit.ListBanEvents(c.Request.Context(), limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list ban events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, BanEventsResponse{Events: events})
}

func (h *MonitorHandlers) snapshot(c *gin.Context) (core.Stats, bool) {
	st, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		if errors.Is(err, core.ErrHubStopped) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "server is shutting down"})
			return core.Stats{}, false
		}
		h.log.Error().Err(err).Msg("failed to read hub stats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return core.Stats{}, false
	}
	return st, true
}
