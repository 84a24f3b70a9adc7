package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	msgNoPort = "No port specified"

	defaultEventLimit = 50
	maxEventLimit     = 1000
)

type connectRequest struct {
	Port string `json:"port"`
}

type commandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type handler struct {
	deps Deps
}

// GET /
func (h *handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Parking Bridge API",
		"status":  "running",
	})
}

// GET /api/data
func (h *handler) data(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Snapshots.Snapshot())
}

// GET /api/ports
func (h *handler) ports(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Ports.ListCandidatePorts())
}

// POST /api/connect
// Failures are reported in the body with status 200, the dashboard only reads success.
func (h *handler) connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Port == "" {
		c.JSON(http.StatusOK, commandResponse{Success: false, Message: msgNoPort})
		return
	}

	ack, err := h.deps.Connection.Connect(c.Request.Context(), req.Port)
	if err != nil {
		log.Warn().Err(err).Str("port", req.Port).Msg("Connect request failed")
		c.JSON(http.StatusOK, commandResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, commandResponse{Success: true, Message: ack.Message})
}

// POST /api/disconnect
func (h *handler) disconnect(c *gin.Context) {
	ack, err := h.deps.Connection.Disconnect()
	if err != nil {
		c.JSON(http.StatusOK, commandResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, commandResponse{Success: true, Message: ack.Message})
}

// GET /api/events?limit=N
func (h *handler) events(c *gin.Context) {
	if h.deps.Events == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event log is disabled"})
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	events, err := h.deps.Events.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Could not read connection events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read connection events"})
		return
	}
	c.JSON(http.StatusOK, events)
}
