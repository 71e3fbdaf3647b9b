package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/harun/ssegate/internal/tracing"
	"github.com/harun/ssegate/pkg/session"
	"github.com/harun/ssegate/pkg/stream"
	"github.com/rs/zerolog"
)

// Session rejection reasons reported to metrics
const (
	rejectShuttingDown = "shutting_down"
	rejectDuplicate    = "duplicate"
	rejectUpgrade      = "upgrade_failed"
)

// terminationGuard releases a session's resources exactly once, whichever
// of client disconnect, write failure, engine failure or shutdown comes first.
// release learns whether the stream was ever opened to the client.
type terminationGuard struct {
	mu      sync.Mutex
	done    bool
	opened  bool
	release func(opened bool)
}

// open marks the stream as live. It fails if teardown already ran.
func (g *terminationGuard) open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return false
	}
	g.opened = true
	return true
}

func (g *terminationGuard) terminate() {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return
	}
	g.done = true
	opened := g.opened
	g.mu.Unlock()

	g.release(opened)
}

// handleStream is the stream-establishment endpoint. The handler goroutine
// owns the channel's writer loop for the life of the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		s.metrics.SessionRejected(rejectShuttingDown)
		http.Error(w, bodyShuttingDown, http.StatusServiceUnavailable)
		return
	}

	id := s.newID()
	ctx := tracing.WithSessionID(r.Context(), id)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	ctx, span := tracing.StartSpan(ctx, "gateway.stream", tracing.AttrRemoteAddr.String(r.RemoteAddr))
	defer span.End()

	// The channel leaves the registry before it closes, whoever closes it.
	var sess *session.Session
	writer := stream.NewSSEWriter(w, r)
	ch := stream.NewChannel(id, writer, stream.Options{
		QueueLimit: s.cfg.Server.SendQueueLimit,
		KeepAlive:  s.cfg.Server.KeepAlive(),
		OnClose:    func() { s.registry.RemoveSession(sess) },
		Logger:     logger,
	})
	sess = session.New(id, ch, r.RemoteAddr, s.newLimiter())

	guard := &terminationGuard{release: func(opened bool) {
		ch.Close()
		s.engine.Close(id)
		if !opened {
			return
		}
		s.metrics.SessionClosed(sess.CreatedAt)
		info := sess.Info()
		logger.Info().
			Dur("duration", time.Since(info.CreatedAt)).
			Time("lastActivity", info.LastActivity).
			Int("requestsLastMinute", info.Requests).
			Int("sessions", s.registry.Count()).
			Msg("Stream closed")
	}}
	sess.OnTerminate(guard.terminate)

	// Registration precedes any byte reaching the client, so a command
	// naming this id can never arrive before the session exists.
	if err := s.registry.Register(sess); err != nil {
		ch.Close()
		s.metrics.SessionRejected(rejectDuplicate)
		span.RecordError(err)
		logger.Error().Err(err).Msg("Failed to register session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if s.shuttingDown.Load() {
		// Stop may have taken its snapshot before this registration.
		guard.terminate()
		s.metrics.SessionRejected(rejectShuttingDown)
		http.Error(w, bodyShuttingDown, http.StatusServiceUnavailable)
		return
	}

	if err := writer.Upgrade(); err != nil {
		guard.terminate()
		s.metrics.SessionRejected(rejectUpgrade)
		span.RecordError(err)
		logger.Error().Err(err).Msg("Failed to upgrade stream")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer guard.terminate()

	if !guard.open() {
		// Shutdown tore the session down during the upgrade.
		return
	}
	s.metrics.SessionOpened()
	logger.Info().
		Str("remote", r.RemoteAddr).
		Int("sessions", s.registry.Count()).
		Msg("Stream opened")

	go s.openSession(ctx, ch, guard, logger)

	if err := ch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug().Err(err).Msg("Stream writer stopped")
	}
}

// openSession hands the channel to the engine. Open blocks until the
// endpoint event is written, so it runs beside the writer loop.
func (s *Server) openSession(ctx context.Context, ch *stream.Channel, guard *terminationGuard, logger zerolog.Logger) {
	endpoint := s.cfg.Server.MessagePath + "?" + QuerySessionID + "=" + url.QueryEscape(ch.SessionID())
	if err := s.engine.Open(ctx, ch, endpoint); err != nil {
		if !errors.Is(err, stream.ErrChannelClosed) && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Protocol engine failed to open session")
		}
		guard.terminate()
	}
}

func (s *Server) newLimiter() *session.RateLimiter {
	if s.cfg.RateLimit.RequestsPerMinute == 0 && s.cfg.RateLimit.MaxConcurrent == 0 {
		return nil
	}
	return session.NewRateLimiterWithLimits(s.cfg.RateLimit.RequestsPerMinute, s.cfg.RateLimit.MaxConcurrent)
}
