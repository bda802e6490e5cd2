package api

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/api/routes"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/consumer"
	"github.com/travigo/telemetria/pkg/ledger"
)

const shutdownTimeout = 10 * time.Second

type Dependencies struct {
	Config config.Config

	Ledger *ledger.Ledger
	Hub    *broadcast.Hub

	Upstream      routes.Upstream
	PipelineStats func() any

	// QueueConnection enables the rmq stats page when set.
	QueueConnection rmq.Connection
}

func NewApp(deps Dependencies) (*fiber.App, error) {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())
	webApp.Use(cors.New())

	var resetMiddleware []fiber.Handler
	if deps.Config.Auth.Domain != "" {
		ensureValidToken, err := EnsureValidToken(deps.Config.Auth)
		if err != nil {
			return nil, err
		}
		resetMiddleware = append(resetMiddleware, ensureValidToken)
	}

	group := webApp.Group("/api")

	group.Get("version", routes.APIVersion)

	routes.TelemetryRouter(group.Group("/telemetria"), deps.Ledger, routes.HistoryLimits{
		Default: deps.Config.Telemetry.DefaultHistoryLimit,
		Max:     deps.Config.Telemetry.MaxHistoryLimit,
	}, resetMiddleware...)

	routes.HealthRouter(group.Group("/health"), routes.HealthSources{
		Ledger:        deps.Ledger,
		Hub:           deps.Hub,
		Upstream:      deps.Upstream,
		PipelineStats: deps.PipelineStats,
	})

	if deps.QueueConnection != nil {
		group.Get("/queue/stats", adaptor.HTTPHandler(consumer.NewStatsHandler(deps.QueueConnection)))
	}

	routes.RealtimeRouter(webApp.Group("/ws"), deps.Hub)

	if deps.Config.StaticDir != "" {
		webApp.Static("/", deps.Config.StaticDir)
	}

	return webApp, nil
}

// SetupServer serves the API on listen until ctx is done.
func SetupServer(ctx context.Context, listen string, deps Dependencies) error {
	webApp, err := NewApp(deps)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()

		if err := webApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("Failed to shut down web server")
		}
	}()

	log.Info().Str("listen", listen).Msg("Web server listening")

	return webApp.Listen(listen)
}
