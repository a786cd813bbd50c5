// Package server wires the landing page backend: static frame assets, the
// waitlist API and a few operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/ivlev/cleo/internal/config"
	"github.com/ivlev/cleo/internal/frames"
	"github.com/ivlev/cleo/internal/system"
	"github.com/ivlev/cleo/internal/waitlist"
)

const (
	immutableCache = "public, max-age=31536000, immutable"
	qrSize         = 256
)

type Server struct {
	cfg      *config.Config
	waitlist *waitlist.Handler
	logger   *slog.Logger
	started  time.Time
	qr       []byte
}

// New builds the server. store may be nil, in which case the waitlist
// answers 503.
func New(cfg *config.Config, store waitlist.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		waitlist: &waitlist.Handler{
			Store:       store,
			Environment: envName(cfg),
			Logger:      logger,
		},
		logger:  logger,
		started: time.Now(),
	}

	if cfg.Server.PublicURL != "" {
		png, err := qrcode.Encode(cfg.Server.PublicURL, qrcode.Medium, qrSize)
		if err != nil {
			return nil, err
		}
		s.qr = png
	}
	return s, nil
}

func envName(cfg *config.Config) string {
	if cfg.Waitlist.DatabaseURL == "" {
		return "development"
	}
	return "production"
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/waitlist", s.waitlist.Submit)
	mux.HandleFunc("/api/waitlist-debug", s.waitlist.Debug)
	mux.HandleFunc("GET /api/frames", s.handleAnimations)
	mux.HandleFunc("GET /api/frames/{name}", s.handleAnimation)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /qr.png", s.handleQR)
	mux.Handle("/", immutableFrames(http.FileServer(http.Dir(s.cfg.Server.FramesDir))))

	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", srv.Addr, "frames", s.cfg.Server.FramesDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout()
	s.logger.Info("server: shutting down gracefully", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type animation struct {
	Name   string   `json:"name"`
	Frames int      `json:"frames"`
	Start  int      `json:"start"`
	Ext    string   `json:"ext"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	URLs   []string `json:"urls,omitempty"`
}

func fromManifest(m *frames.Manifest) animation {
	return animation{Name: m.Name, Frames: m.Frames, Start: m.Start, Ext: m.Ext, Width: m.Width, Height: m.Height}
}

// animations lists the manifests under the frames directory. Without any,
// the configured animation is reported.
func (s *Server) animations() ([]animation, error) {
	manifests, err := frames.FindManifests(s.cfg.Server.FramesDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if len(manifests) == 0 {
		a := s.cfg.Animation
		return []animation{{Name: a.Name, Frames: a.Frames, Start: a.Start, Ext: a.Ext}}, nil
	}

	out := make([]animation, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, fromManifest(m))
	}
	return out, nil
}

func (s *Server) handleAnimations(w http.ResponseWriter, r *http.Request) {
	list, err := s.animations()
	if err != nil {
		s.logger.Error("server: list animations failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot list animations"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAnimation(w http.ResponseWriter, r *http.Request) {
	list, err := s.animations()
	if err != nil {
		s.logger.Error("server: list animations failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot list animations"})
		return
	}

	name := r.PathValue("name")
	for _, a := range list {
		if a.Name != name {
			continue
		}
		seq := frames.Sequence{Name: a.Name, Count: a.Frames, Start: a.Start, Ext: a.Ext}
		a.URLs = seq.URLs()
		writeJSON(w, http.StatusOK, a)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown animation"})
}

type health struct {
	Status string        `json:"status"`
	Uptime string        `json:"uptime"`
	Memory system.Memory `json:"memory"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	if m, err := system.ProbeMemory(); err == nil {
		h.Memory = m
	} else {
		s.logger.Debug("server: memory probe failed", "error", err)
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if s.qr == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(s.qr)
}

// immutableFrames marks image assets as cacheable forever; frame files are
// never rewritten under the same name.
func immutableFrames(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if system.HasExtension(r.URL.Path, system.ImageExtensions) {
			w.Header().Set("Cache-Control", immutableCache)
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug("server: request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
