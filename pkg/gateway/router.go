package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harun/ssegate/internal/metrics"
	"github.com/harun/ssegate/internal/tracing"
	"github.com/harun/ssegate/pkg/session"
	"github.com/harun/ssegate/pkg/stream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
)

// RouteResult is the synchronous answer to one command
type RouteResult struct {
	Status int
	Body   string
	Err    error
}

// Router forwards command payloads to the protocol engine against the
// channel of the session they name. It holds no per-call state.
type Router struct {
	registry *session.Registry
	engine   ProtocolEngine
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewRouter creates an inbound router
func NewRouter(registry *session.Registry, engine ProtocolEngine, m *metrics.Metrics, logger zerolog.Logger) *Router {
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Router{
		registry: registry,
		engine:   engine,
		metrics:  m,
		logger:   logger,
	}
}

// Route delivers payload to the session identified by sessionID. Framing is
// validated before the registry is consulted. Engine failures never tear
// the session down.
func (rt *Router) Route(ctx context.Context, sessionID string, payload []byte) RouteResult {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "gateway.route",
		tracing.AttrSessionID.String(sessionID),
		tracing.AttrPayloadBytes.Int(len(payload)),
	)
	defer span.End()

	res := rt.route(ctx, sessionID, payload)

	span.SetAttributes(tracing.AttrStatus.Int(res.Status))
	if res.Status >= http.StatusInternalServerError {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Body)
	}
	rt.metrics.CommandHandled(statusLabel(res), len(payload), time.Since(start))

	return res
}

func (rt *Router) route(ctx context.Context, sessionID string, payload []byte) RouteResult {
	if sessionID == "" {
		return RouteResult{
			Status: http.StatusBadRequest,
			Body:   bodySessionMissing,
			Err:    fmt.Errorf("%w: missing session identifier", ErrMalformedRequest),
		}
	}
	if err := validatePayload(payload); err != nil {
		return RouteResult{Status: http.StatusBadRequest, Body: "Invalid message body", Err: err}
	}

	sess, err := rt.registry.Lookup(sessionID)
	if err != nil {
		return RouteResult{Status: http.StatusNotFound, Body: bodyNotFound, Err: err}
	}

	if sess.Limiter != nil {
		allowed, reason := sess.Limiter.Acquire()
		if !allowed {
			return RouteResult{
				Status: http.StatusTooManyRequests,
				Body:   bodyRateLimited,
				Err:    fmt.Errorf("session %s: %s", sessionID, reason),
			}
		}
		defer sess.Limiter.Release()
	}
	sess.Touch()

	ctx = tracing.WithSessionID(ctx, sessionID)
	if err := rt.engine.Handle(ctx, sess.Channel, payload); err != nil {
		logger := tracing.LoggerFromContext(ctx, rt.logger)
		if errors.Is(err, stream.ErrChannelClosed) {
			logger.Debug().Err(err).Msg("Command raced stream close")
			return RouteResult{Status: http.StatusNotFound, Body: bodyClosed, Err: err}
		}
		logger.Error().Err(err).Msg("Protocol engine failed to handle command")
		return RouteResult{Status: http.StatusInternalServerError, Body: bodyInternalError, Err: err}
	}

	return RouteResult{Status: http.StatusAccepted, Body: bodyAccepted}
}

func validatePayload(payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedRequest)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: body is not valid JSON", ErrMalformedRequest)
	}
	return nil
}

func statusLabel(res RouteResult) string {
	switch {
	case res.Status == http.StatusAccepted:
		return metrics.StatusAccepted
	case res.Status == http.StatusTooManyRequests:
		return metrics.StatusRateLimited
	case errors.Is(res.Err, stream.ErrChannelClosed):
		return metrics.StatusClosed
	case res.Status == http.StatusNotFound:
		return metrics.StatusNotFound
	case res.Status < http.StatusInternalServerError:
		return metrics.StatusMalformed
	default:
		return metrics.StatusError
	}
}

// handleMessage is the command endpoint
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(QuerySessionID)
	if sessionID == "" {
		sessionID = r.Header.Get(HeaderSessionID)
	}

	var res RouteResult
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		res = RouteResult{
			Status: http.StatusBadRequest,
			Body:   "Invalid message body",
			Err:    fmt.Errorf("%w: %v", ErrMalformedRequest, err),
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res.Status = http.StatusRequestEntityTooLarge
			res.Body = "Message body too large"
		}
		s.metrics.CommandHandled(metrics.StatusMalformed, 0, 0)
	} else {
		res = s.router.Route(r.Context(), sessionID, payload)
	}

	if res.Err != nil && res.Status < http.StatusInternalServerError {
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Debug().
			Err(res.Err).
			Str("sessionId", sessionID).
			Int("status", res.Status).
			Msg("Command rejected")
	}

	writeResult(w, res)
}

func writeResult(w http.ResponseWriter, res RouteResult) {
	if res.Status == http.StatusInternalServerError {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(res.Status)
	_, _ = io.WriteString(w, res.Body)
}
