package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/campavatars/avatar"
	"github.com/briangreenhill/campavatars/cache"
	"github.com/briangreenhill/campavatars/internal/countdown"
	appmw "github.com/briangreenhill/campavatars/internal/http/middleware"
	"github.com/briangreenhill/campavatars/internal/jobs"
	"github.com/briangreenhill/campavatars/internal/roster"
)

// Enqueuer is the part of *asynq.Client the server needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router    *chi.Mux
	Roster    *roster.Roster
	NewLoader jobs.LoaderFactory
	Cache     cache.Reader
	Target    time.Time
	Now       func() time.Time
	Queue     Enqueuer // nil disables the warm endpoint
	Log       zerolog.Logger
}

type ServerOptions struct {
	Roster        *roster.Roster
	NewLoader     jobs.LoaderFactory
	Cache         cache.Reader
	Target        time.Time
	Now           func() time.Time
	Queue         Enqueuer
	Log           zerolog.Logger
	AllowedOrigin string
}

func New(opts ServerOptions) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Roster == nil {
		opts.Roster = &roster.Roster{}
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(opts.Log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(appmw.AllowOrigin(opts.AllowedOrigin))

	s := &Server{
		Router:    r,
		Roster:    opts.Roster,
		NewLoader: opts.NewLoader,
		Cache:     opts.Cache,
		Target:    opts.Target,
		Now:       opts.Now,
		Queue:     opts.Queue,
		Log:       opts.Log,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/channels", s.handleChannels)
		ar.Get("/avatars", s.handleAvatars)
		ar.Get("/avatars/{identity}", s.handleAvatar)
		ar.Post("/avatars/warm", s.handleWarm)
		ar.Get("/countdown", s.handleCountdown)
	})

	return s
}

type avatarsResponse struct {
	Complete bool            `json:"complete"`
	Avatars  []avatar.Result `json:"avatars"`
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Roster)
}

// handleAvatars is the page's "channels section became visible" signal. It
// loads every roster avatar the way one page load does and answers once all
// outcomes are in or the client gives up.
func (s *Server) handleAvatars(w http.ResponseWriter, r *http.Request) {
	if s.NewLoader == nil {
		http.Error(w, "avatar loading is not configured", http.StatusServiceUnavailable)
		return
	}

	l := s.NewLoader()
	cards := make([]avatar.Card, 0, len(s.Roster.Channels))
	for _, ch := range s.Roster.Channels {
		cards = append(cards, avatar.Card{Identity: ch.Username})
	}

	// fetches keep running (and populate the cache) if the client leaves
	l.Arm(context.WithoutCancel(r.Context()), cards)
	complete := l.Wait(r.Context()) == nil

	results := l.Results()
	resp := avatarsResponse{Complete: complete, Avatars: make([]avatar.Result, 0, len(results))}
	seen := map[string]bool{}
	for _, ch := range s.Roster.Channels {
		res, ok := results[ch.Username]
		if !ok || seen[ch.Username] {
			continue
		}
		seen[ch.Username] = true
		resp.Avatars = append(resp.Avatars, res)
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(chi.URLParam(r, "identity"))
	if identity == "" || s.Cache == nil {
		http.NotFound(w, r)
		return
	}

	u, ok := s.Cache.Get(r.Context(), identity)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, avatar.Result{Identity: identity})
		return
	}
	writeJSON(w, r, http.StatusOK, avatar.Result{Identity: identity, URL: u, Found: true, Cached: true})
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		http.Error(w, "background queue is not configured", http.StatusServiceUnavailable)
		return
	}

	task, err := jobs.NewWarmAvatarsTask(s.Roster.Usernames())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("build warm task")
		http.Error(w, "could not build task", http.StatusInternalServerError)
		return
	}

	info, err := s.Queue.EnqueueContext(r.Context(), task)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("enqueue warm task")
		http.Error(w, "could not enqueue task", http.StatusBadGateway)
		return
	}

	hlog.FromRequest(r).Info().Str("task_id", info.ID).Msg("enqueued avatar warm-up")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"task_id": info.ID})
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, countdown.Until(s.Now(), s.Target))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}
