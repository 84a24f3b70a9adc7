// Package api exposes the bridge over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/NotCoffee418/parking_bridge/pkg/eventlog"
	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/NotCoffee418/parking_bridge/pkg/port_reader"
	"github.com/NotCoffee418/parking_bridge/pkg/portscan"
	"github.com/gin-gonic/gin"
)

type SnapshotSource interface {
	Snapshot() parking.Snapshot
}

type PortLister interface {
	ListCandidatePorts() []portscan.CandidatePort
}

type Connection interface {
	Connect(ctx context.Context, port string) (port_reader.Ack, error)
	Disconnect() (port_reader.Ack, error)
}

type EventSource interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Event, error)
}

// Deps wires the router. Events and Feed are optional.
type Deps struct {
	Snapshots  SnapshotSource
	Ports      PortLister
	Connection Connection
	Events     EventSource
	Feed       http.Handler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(cors())

	h := &handler{deps: d}

	r.GET("/", h.root)
	if d.Feed != nil {
		r.GET("/ws", gin.WrapH(d.Feed))
	}

	apiRoutes := r.Group("/api")
	{
		apiRoutes.GET("/data", h.data)
		apiRoutes.GET("/ports", h.ports)
		apiRoutes.POST("/connect", h.connect)
		apiRoutes.POST("/disconnect", h.disconnect)
		apiRoutes.GET("/events", h.events)
	}
	return r
}
