// Package feed subscribes to a bridge's websocket feed and hands every snapshot to a callback.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrMaxRetries = errors.New("max connection retries reached")

type Options struct {
	Host           string
	TLS            bool
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	PingInterval   time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = 2 * time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 60 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
}

func (o Options) url() string {
	scheme := "ws"
	if o.TLS {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: o.Host, Path: "/ws"}
	return u.String()
}

// Listen keeps a websocket subscription alive, reconnecting with exponential backoff,
// until ctx is cancelled (returns nil) or the retries are exhausted.
func Listen(ctx context.Context, opts Options, handle func(parking.Snapshot)) error {
	opts.applyDefaults()
	target := opts.url()
	retryCount := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		if retryCount > 0 {
			retryDelay := backoff(retryCount, opts.BaseRetryDelay, opts.MaxRetryDelay)
			log.Info().Msgf("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, opts.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		log.Info().Str("url", target).Msg("Connecting to bridge")

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("Connection failed")
			retryCount++
			if retryCount >= opts.MaxRetries {
				return ErrMaxRetries
			}
			continue
		}

		log.Info().Msg("Connected, receiving snapshots")
		retryCount = 0

		broken := handleConnection(ctx, c, opts.PingInterval, handle)
		c.Close()
		if !broken {
			return nil
		}
		log.Warn().Msg("Connection lost, will retry...")
	}
}

func backoff(retryCount int, base, limit time.Duration) time.Duration {
	if retryCount > 16 {
		return limit
	}
	delay := time.Duration(1<<(retryCount-1)) * base
	if delay > limit {
		delay = limit
	}
	return delay
}

// handleConnection returns true when the connection broke, false on a clean shutdown.
func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	pingInterval time.Duration,
	handle func(parking.Snapshot),
) bool {
	done := make(chan struct{})

	// Snapshots only arrive on change, liveness comes from pongs.
	deadline := 2*pingInterval + 10*time.Second
	c.SetReadDeadline(time.Now().Add(deadline))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(deadline))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("WebSocket error")
				} else {
					log.Info().Err(err).Msg("Connection closed")
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(deadline))

			if messageType != websocket.TextMessage {
				log.Debug().Int("type", messageType).Msg("Ignoring non-text message")
				continue
			}
			var snapshot parking.Snapshot
			if err := json.Unmarshal(message, &snapshot); err != nil {
				log.Warn().Err(err).Msg("Failed to parse snapshot")
				continue
			}
			handle(snapshot)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				log.Warn().Err(err).Msg("Failed to send ping")
			}
		case <-ctx.Done():
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Debug().Err(err).Msg("Error sending close message")
			}
			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
