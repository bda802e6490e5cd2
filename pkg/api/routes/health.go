package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/ledger"
)

// Upstream is the inbound report source as seen by the health check.
type Upstream interface {
	Name() string
	Connected() bool
}

type HealthSources struct {
	Ledger        *ledger.Ledger
	Hub           *broadcast.Hub
	Upstream      Upstream
	PipelineStats func() any
}

type healthResponse struct {
	Status            string                  `json:"status"`
	Upstream          string                  `json:"upstream,omitempty"`
	UpstreamConnected bool                    `json:"upstream_connected"`
	DurableStorage    ledger.DurabilityStatus `json:"durable_storage"`
	LedgerLength      int                     `json:"ledger_length"`
	Observers         int                     `json:"observers"`
	Pipeline          any                     `json:"pipeline,omitempty"`
}

func HealthRouter(router fiber.Router, sources HealthSources) {
	router.Get("/", func(c *fiber.Ctx) error {
		return getHealth(c, sources)
	})
}

func getHealth(c *fiber.Ctx, sources HealthSources) error {
	response := healthResponse{
		Status:         "OK",
		DurableStorage: sources.Ledger.Status(),
		LedgerLength:   sources.Ledger.Len(),
	}

	if sources.Upstream != nil {
		response.Upstream = sources.Upstream.Name()
		response.UpstreamConnected = sources.Upstream.Connected()
	}
	if sources.Hub != nil {
		response.Observers = sources.Hub.Count()
	}
	if sources.PipelineStats != nil {
		response.Pipeline = sources.PipelineStats()
	}

	if !response.DurableStorage.OK || !response.UpstreamConnected {
		response.Status = "DEGRADED"
	}

	return c.JSON(response)
}
