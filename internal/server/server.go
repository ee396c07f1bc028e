package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"episode-desk/internal/broadcast"
	"episode-desk/internal/catalog"
	"episode-desk/internal/format"
	"episode-desk/internal/models"
	"episode-desk/internal/shownotes"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxShownotesBytes     = 1 << 20
)

// EpisodeSource abstracts the episode catalog for the HTTP handlers.
type EpisodeSource interface {
	Episodes() []models.Episode
	Episode(ref string) (models.Episode, error)
	Newest() (models.Episode, error)
	Next() catalog.NextInfo
	State(ep models.Episode) (broadcast.State, string)
	Refresh(ctx context.Context) error
}

// TokenValidator determines whether a supplied token is authorized.
type TokenValidator interface {
	IsValidToken(token string) bool
}

// SiteInfo describes the static information used in titles and the feed.
type SiteInfo struct {
	Title    string
	Language string
	Location *time.Location
}

type serverHandler struct {
	episodes  EpisodeSource
	validator TokenValidator
	site      SiteInfo
	logger    zerolog.Logger
}

type episodeView struct {
	models.Episode
	Titles   format.Titles   `json:"titles"`
	State    broadcast.State `json:"state"`
	LiveText string          `json:"live_text,omitempty"`
	Duration string          `json:"duration,omitempty"`
}

// New creates the HTTP handler that exposes the episode API and RSS feed.
// A nil validator disables token checks.
func New(episodes EpisodeSource, validator TokenValidator, site SiteInfo, logger zerolog.Logger) http.Handler {
	if site.Title == "" {
		site.Title = "Episodes"
	}
	if site.Location == nil {
		site.Location = time.UTC
	}

	h := &serverHandler{
		episodes:  episodes,
		validator: validator,
		site:      site,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)

		r.Get("/episodes", h.handleEpisodes)
		r.Get("/episodes/newest", h.handleNewest)
		r.Get("/episodes/next", h.handleNext)
		r.Get("/episodes/{ref}", h.handleEpisode)
		r.Post("/episodes/{ref}/shownotes", h.handleShownotes)
		r.Get("/feed", h.handleFeed)
		r.Get("/feed.xml", h.handleFeed)
		r.Post("/refresh", h.handleRefresh)
	})

	return r
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

func (h *serverHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *serverHandler) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes := h.episodes.Episodes()
	views := make([]episodeView, 0, len(episodes))
	for _, ep := range episodes {
		views = append(views, h.view(ep))
	}
	writeJSON(w, r, http.StatusOK, views)
}

func (h *serverHandler) handleNewest(w http.ResponseWriter, r *http.Request) {
	ep, err := h.episodes.Newest()
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.view(ep))
}

func (h *serverHandler) handleNext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.episodes.Next())
}

func (h *serverHandler) handleEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := h.episodes.Episode(chi.URLParam(r, "ref"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.view(ep))
}

func (h *serverHandler) handleShownotes(w http.ResponseWriter, r *http.Request) {
	ep, err := h.episodes.Episode(chi.URLParam(r, "ref"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxShownotesBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read shownotes")
		return
	}
	if len(body) > maxShownotesBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "shownotes too large")
		return
	}

	markup := string(body)
	annotated, unmatched := shownotes.AnnotateReport(markup, ep.Chapters)
	if len(unmatched) > 0 {
		logger := hlog.FromRequest(r)
		logger.Debug().Strs("chapters", unmatched).Str("episode", ep.Slug).Msg("chapters without heading")
		if near, err := shownotes.NearMisses(markup, unmatched); err != nil {
			logger.Warn().Err(err).Str("episode", ep.Slug).Msg("could not inspect shownote headings")
		} else if len(near) > 0 {
			logger.Warn().Strs("chapters", near).Str("episode", ep.Slug).Msg("headings must be bare <h3> with the exact chapter title")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Unmatched-Chapters", strconv.Itoa(len(unmatched)))
	_, _ = io.WriteString(w, annotated)
}

func (h *serverHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	base := requestBaseURL(r)
	if base == nil {
		writeError(w, r, http.StatusInternalServerError, "unable to determine request base URL")
		return
	}

	data, err := h.buildRSSFeed(base, r.URL.Path, r.URL.RawQuery, h.episodes.Episodes())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to build RSS feed")
		writeError(w, r, http.StatusInternalServerError, "failed to build feed")
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to write RSS feed")
	}
}

func (h *serverHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.episodes.Refresh(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("refresh failed")
		writeError(w, r, http.StatusBadGateway, "refresh failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *serverHandler) view(ep models.Episode) episodeView {
	state, live := h.episodes.State(ep)
	return episodeView{
		Episode:  ep,
		Titles:   format.AllTitles(ep.Slug, ep.Title, h.site.Title),
		State:    state,
		LiveText: live,
		Duration: format.Duration(ep.DurationSeconds),
	}
}

func (h *serverHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrNoEpisodes):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("episode lookup failed")
		writeError(w, r, http.StatusInternalServerError, "episode lookup failed")
	}
}

func (h *serverHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.validator != nil {
			token := extractToken(r)
			if token == "" || !h.validator.IsValidToken(token) {
				writeError(w, r, http.StatusUnauthorized, "missing or invalid token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	if header := strings.TrimSpace(r.Header.Get("X-Episodes-Token")); header != "" {
		return header
	}

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return ""
	}

	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}

	return ""
}
