// Package httpapi exposes the engine as a JSON API, for a presentation layer
// running in another process.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
)

type (
	// Controller runs functions on the engine goroutine. engine.Runner is a
	// Controller.
	Controller interface {
		Do(ctx context.Context, f func(*engine.Engine)) error
		Snapshot(ctx context.Context) (gs.Snapshot, error)
	}

	// Server is the HTTP server
	Server struct {
		router *chi.Mux
		engine Controller
		logger *slog.Logger
	}
)

// New creates a new server
func New(c Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{router: chi.NewRouter(), engine: c, logger: logger}
	s.setupRoutes()
	return s
}

// Handler returns the router, for mounting or testing.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)

	r.Route("/tracks", func(r chi.Router) {
		r.Post("/", s.handleCreateTrack)
		r.Put("/order", s.handleReorderTracks)
		r.Delete("/steps", s.handleClearAllTracks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTrack)
			r.Patch("/", s.handleUpdateTrack)
			r.Delete("/", s.handleDeleteTrack)
			r.Post("/select", s.handleTrackAction((*engine.Engine).SelectTrack))
			r.Post("/mute", s.handleTrackAction((*engine.Engine).ToggleMute))
			r.Post("/solo", s.handleTrackAction((*engine.Engine).ToggleSolo))
			r.Delete("/steps", s.handleTrackAction((*engine.Engine).ClearTrackSequence))
			r.Put("/steps/{step}", s.handleSetStep)
		})
	})

	r.Route("/transport", func(r chi.Router) {
		r.Post("/start", s.handleAction((*engine.Engine).StartSequencer))
		r.Post("/stop", s.handleAction((*engine.Engine).StopSequencer))
		r.Put("/bpm", s.handleSetBPM)
		r.Put("/steps", s.handleSetSteps)
	})

	r.Route("/notes", func(r chi.Router) {
		r.Post("/play", s.handlePlayNote)
		r.Post("/release", s.handleReleaseNote)
		r.Post("/stop", s.handleAction((*engine.Engine).StopAllVoices))
		r.Put("/sustain", s.handleSustain)
	})

	r.Put("/arpeggiator", s.handleArpeggiator)
	r.Patch("/globals", s.handleGlobals)
	r.Patch("/master", s.handleMaster)

	r.Route("/presets", func(r chi.Router) {
		r.Get("/", s.handlePresetNames)
		r.Post("/globals/{name}", s.handlePreset(engine.GlobalPresetNames, (*engine.Engine).LoadGlobalPreset))
		r.Post("/bundles/{name}", s.handlePreset(engine.TrackBundleNames, (*engine.Engine).LoadTrackBundle))
		r.Post("/rhythms/{name}", s.handlePreset(engine.RhythmNames, (*engine.Engine).LoadNamedRhythm))
		r.Post("/chords/{name}", s.handlePreset(engine.ChordNames, (*engine.Engine).PlayChordByName))
		r.Post("/progressions/{name}", s.handlePreset(engine.ProgressionNames, (*engine.Engine).PlayProgressionByName))
		r.Post("/patterns/{n}", s.handlePattern)
	})
}

// logRequests logs every request through the server's slog logger.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("id", middleware.GetReqID(r.Context())))
	})
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	s.logger.Info("server starting", slog.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	<-done
	return nil
}
