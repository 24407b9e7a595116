package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/BNLNPPS/swf-monitor/internal/broadcast"
	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/logging"
	"github.com/BNLNPPS/swf-monitor/internal/metrics"
)

// requireToken enforces bearer-token auth on the streaming API when a
// token is configured. EventSource implementations cannot always set
// headers, so the token is also accepted as a query parameter.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.APIToken == "" {
			return next(c)
		}

		supplied := c.QueryParam("token")
		if auth := c.Request().Header.Get("Authorization"); auth != "" {
			for _, scheme := range []string{"Bearer ", "Token "} {
				if strings.HasPrefix(auth, scheme) {
					supplied = strings.TrimPrefix(auth, scheme)
					break
				}
			}
		}

		if supplied != s.config.APIToken {
			metrics.SSEConnectionsRejected.WithLabelValues("unauthorized").Inc()
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"detail": "Authentication credentials were not provided.",
			})
		}
		return next(c)
	}
}

// handleMessageStream turns one HTTP connection into a live SSE event
// stream: register with the broadcaster, emit a connected frame, then
// loop between the client queue and the heartbeat timer until the
// connection goes away.
func (s *Server) handleMessageStream(c echo.Context) error {
	if !s.rateLimiter.Allow(c.RealIP()) {
		metrics.SSEConnectionsRejected.WithLabelValues("rate_limit").Inc()
		metrics.SSEConnectionsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"detail": "connection rate limit exceeded",
		})
	}

	if !s.globalLimiter.Acquire() {
		metrics.SSEConnectionsRejected.WithLabelValues("global_limit").Inc()
		metrics.SSEConnectionsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"detail": "server at connection capacity",
		})
	}
	defer s.globalLimiter.Release()

	filter := domain.ParseFilter(
		c.QueryParam("msg_types"),
		c.QueryParam("agents"),
		c.QueryParam("run_ids"),
	)

	client, err := s.broadcaster.Register(filter)
	if err != nil {
		metrics.SSEConnectionsRejected.WithLabelValues("global_limit").Inc()
		metrics.SSEConnectionsTotal.WithLabelValues("rejected").Inc()
		if errors.Is(err, broadcast.ErrMaxClients) || errors.Is(err, broadcast.ErrStopped) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"detail": "server not accepting new streams",
			})
		}
		return err
	}
	defer s.broadcaster.Unregister(client.ID)

	metrics.SSEConnectionsTotal.WithLabelValues("success").Inc()
	connectedAt := s.clock.Now()
	defer func() {
		metrics.SSEConnectionDuration.Observe(s.clock.Since(connectedAt).Seconds())
	}()

	resp := c.Response()
	header := resp.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	// Disable proxy buffering so frames reach the client immediately
	header.Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	logger := logging.WithClient(client.ID.String())
	logger.Info("SSE client connected", "filter_empty", filter.IsEmpty())

	if err := writeFrame(resp, "connected", map[string]string{
		"client_id": client.ID.String(),
		"status":    "connected",
	}); err != nil {
		logger.Debug("SSE write failed on connect", "error", err)
		return nil
	}
	resp.Flush()

	ctx := c.Request().Context()
	timer := s.clock.NewTimer(s.config.HeartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case e, ok := <-client.Events():
			if !ok {
				// Broadcaster shut down underneath us.
				logger.Info("SSE stream closed by server shutdown")
				return nil
			}
			if err := writeFrame(resp, e.MessageType, e); err != nil {
				logger.Debug("SSE write failed", "error", err)
				return nil
			}
			resp.Flush()
			metrics.SSEEventsSentTotal.Inc()

		case <-timer.Chan():
			if err := writeFrame(resp, "heartbeat", map[string]int64{
				"timestamp": s.clock.Now().Unix(),
			}); err != nil {
				logger.Debug("SSE heartbeat write failed", "error", err)
				return nil
			}
			resp.Flush()
			metrics.SSEHeartbeatsTotal.Inc()
			timer.Reset(s.config.HeartbeatInterval)
			continue

		case <-ctx.Done():
			logger.Info("SSE client disconnected")
			return nil
		}
		timer.Reset(s.config.HeartbeatInterval)
	}
}

// writeFrame emits one SSE frame: the event name followed by the JSON
// serialized data and a blank line.
func writeFrame(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal frame data: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// handleStreamStatus reports the local process's connected clients and
// their filters. Other processes keep their own registries.
func (s *Server) handleStreamStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.broadcaster.Status())
}
