package routes

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/ctdf"
)

const (
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

func RealtimeRouter(router fiber.Router, hub *broadcast.Hub) {
	router.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		return fiber.ErrUpgradeRequired
	})

	router.Get("/", websocket.New(func(conn *websocket.Conn) {
		streamEvents(conn, hub)
	}))
}

// streamEvents forwards every event published after the client connected as a
// telemetria-update message until either side goes away.
func streamEvents(conn *websocket.Conn, hub *broadcast.Hub) {
	subscription := hub.Subscribe(conn.IP())
	defer hub.Unsubscribe(subscription)

	log.Info().Str("ip", conn.IP()).Uint64("id", subscription.ID).Msg("Websocket client connected")

	// clients never send anything meaningful, reading only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Info().Str("ip", conn.IP()).Uint64("id", subscription.ID).Uint64("dropped", subscription.Dropped()).Msg("Websocket client disconnected")
			return
		case event, ok := <-subscription.C:
			if !ok {
				closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
				if err := conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeTimeout)); err != nil {
					log.Debug().Err(err).Uint64("id", subscription.ID).Msg("Websocket close failed")
				}
				return
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Debug().Err(err).Uint64("id", subscription.ID).Msg("Websocket write deadline failed")
				return
			}
			if err := conn.WriteJSON(ctdf.NewTelemetryUpdateEvent(event)); err != nil {
				log.Debug().Err(err).Uint64("id", subscription.ID).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Debug().Err(err).Uint64("id", subscription.ID).Msg("Websocket ping failed")
				return
			}
		}
	}
}
