package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/telemetria/pkg/ledger"
)

type HistoryLimits struct {
	Default int
	Max     int
}

func TelemetryRouter(router fiber.Router, history *ledger.Ledger, limits HistoryLimits, resetMiddleware ...fiber.Handler) {
	if limits.Max <= 0 {
		limits.Max = ledger.DefaultMaxLength
	}
	if limits.Default <= 0 || limits.Default > limits.Max {
		limits.Default = min(10, limits.Max)
	}

	router.Get("/latest", func(c *fiber.Ctx) error {
		return getLatest(c, history)
	})
	router.Get("/historico", func(c *fiber.Ctx) error {
		return getHistory(c, history, limits)
	})

	handlers := append(append([]fiber.Handler{}, resetMiddleware...), func(c *fiber.Ctx) error {
		return deleteHistory(c, history)
	})
	router.Delete("/historico", handlers...)
}

func getLatest(c *fiber.Ctx, history *ledger.Ledger) error {
	event, err := history.Latest()
	if errors.Is(err, ledger.ErrEmptyLedger) {
		c.Status(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "no data",
		})
	}

	return c.JSON(event)
}

func getHistory(c *fiber.Ctx, history *ledger.Ledger, limits HistoryLimits) error {
	limit := limits.Default

	if limitQuery := c.Query("limit"); limitQuery != "" {
		parsed, err := strconv.Atoi(limitQuery)
		if err != nil || parsed < 1 {
			c.Status(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}

		limit = min(parsed, limits.Max)
	}

	events := history.History(limit)

	if c.Query("view") != "basic" {
		return c.JSON(events)
	}

	eventsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, events)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce history",
		})
	}

	return c.JSON(eventsReduced)
}

func deleteHistory(c *fiber.Ctx, history *ledger.Ledger) error {
	if err := history.Reset(c.UserContext()); err != nil {
		c.Status(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "failed to clear history",
		})
	}

	return c.JSON(fiber.Map{
		"message": "history cleared",
	})
}
