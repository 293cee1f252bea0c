package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
	"github.com/IqDevHose/grandm-qrcode/internal/i18n"
	"github.com/IqDevHose/grandm-qrcode/internal/menu"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/httpx"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/observability"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/requestctx"
	"github.com/IqDevHose/grandm-qrcode/internal/services"
)

const (
	maxSessionBodySize       = 16 * 1024
	defaultKeepaliveInterval = 30 * time.Second
	sessionIDParam           = "sessionID"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// SessionHandlers exposes the browsing session endpoints.
type SessionHandlers struct {
	sessions  services.SessionService
	bundle    *i18n.Bundle
	views     *viewRenderer
	keepalive time.Duration
}

// SessionHandlersOption customises SessionHandlers.
type SessionHandlersOption func(*SessionHandlers)

// WithCurrencyLabel overrides the label prefixed to prices.
func WithCurrencyLabel(label string) SessionHandlersOption {
	return func(h *SessionHandlers) {
		h.views = newViewRenderer(h.bundle, label)
	}
}

// WithKeepaliveInterval overrides how often idle snapshot streams send a keepalive comment.
func WithKeepaliveInterval(d time.Duration) SessionHandlersOption {
	return func(h *SessionHandlers) {
		if d > 0 {
			h.keepalive = d
		}
	}
}

// NewSessionHandlers constructs a new SessionHandlers instance.
func NewSessionHandlers(sessions services.SessionService, bundle *i18n.Bundle, opts ...SessionHandlersOption) *SessionHandlers {
	h := &SessionHandlers{
		sessions:  sessions,
		bundle:    bundle,
		views:     newViewRenderer(bundle, ""),
		keepalive: defaultKeepaliveInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /sessions endpoints.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(i18n.Middleware(h.bundle))
	r.Post("/", h.createSession)
	r.Route("/{"+sessionIDParam+"}", func(rs chi.Router) {
		rs.Use(sessionContext)
		rs.Get("/", h.getSession)
		rs.Delete("/", h.deleteSession)
		rs.Post("/events", h.dispatchEvent)
		rs.Get("/all", h.allItems)
		rs.Get("/stream", h.stream)
	})
}

func sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, sessionIDParam))
		next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), id)))
	})
}

type createSessionRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Locale       string `json:"locale"`
}

type sessionResponse struct {
	ID           string       `json:"id"`
	RestaurantID string       `json:"restaurant_id"`
	CreatedAt    string       `json:"created_at"`
	LastSeenAt   string       `json:"last_seen_at"`
	Snapshot     snapshotView `json:"snapshot"`
}

func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_service_unavailable", "session service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createSessionRequest
	body, err := readLimitedBody(r, maxSessionBodySize)
	switch {
	case errors.Is(err, errEmptyBody):
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	default:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}

	locale, ok := h.requestLocale(r, req.Locale)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unsupported locale", http.StatusBadRequest))
		return
	}

	sess, err := h.sessions.Create(ctx, services.CreateSessionCommand{
		RestaurantID: strings.TrimSpace(req.RestaurantID),
		Locale:       locale,
	})
	if err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+sess.ID)
	httpx.WriteJSON(w, http.StatusCreated, h.sessionPayload(sess))
}

// requestLocale applies the body locale first and then the locale resolved by i18n.Middleware.
func (h *SessionHandlers) requestLocale(r *http.Request, bodyLocale string) (domain.Locale, bool) {
	if strings.TrimSpace(bodyLocale) != "" {
		return h.bundle.Parse(bodyLocale)
	}
	if locale, ok := i18n.LocaleFrom(r.Context()); ok {
		return locale, true
	}
	return h.bundle.FromRequest(r), true
}

func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.sessions.Get(ctx, requestctx.SessionID(ctx))
	if err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.sessionPayload(sess))
}

func (h *SessionHandlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.sessions.Close(ctx, requestctx.SessionID(ctx)); err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionEventRequest struct {
	Type       string                `json:"type"`
	CategoryID string                `json:"category_id"`
	ItemID     string                `json:"item_id"`
	SearchTerm *string               `json:"search_term"`
	Locale     string                `json:"locale"`
	Geometry   *stripGeometryRequest `json:"geometry"`
	Scroll     *scrollSignalRequest  `json:"scroll"`
	Resize     *resizeSignalRequest  `json:"resize"`
}

type stripGeometryRequest struct {
	TargetOffsetLeft float64 `json:"target_offset_left"`
	TargetWidth      float64 `json:"target_width"`
	ContainerWidth   float64 `json:"container_width"`
}

type scrollSignalRequest struct {
	ScrollOffset float64 `json:"scroll_offset"`
	ViewportSize float64 `json:"viewport_size"`
	ContentSize  float64 `json:"content_size"`
	RTL          bool    `json:"rtl"`
}

type resizeSignalRequest struct {
	ViewportSize float64 `json:"viewport_size"`
	ContentSize  float64 `json:"content_size"`
}

func (r sessionEventRequest) toEvent() services.SessionEvent {
	evt := services.SessionEvent{
		Type:       services.SessionEventType(strings.TrimSpace(r.Type)),
		CategoryID: strings.TrimSpace(r.CategoryID),
		ItemID:     strings.TrimSpace(r.ItemID),
		Locale:     strings.TrimSpace(r.Locale),
	}
	if r.SearchTerm != nil {
		evt.SearchTerm = *r.SearchTerm
	}
	if g := r.Geometry; g != nil {
		evt.Geometry = &menu.StripGeometry{TargetOffsetLeft: g.TargetOffsetLeft, TargetWidth: g.TargetWidth, ContainerWidth: g.ContainerWidth}
	}
	if s := r.Scroll; s != nil {
		evt.Scroll = &menu.ScrollSignal{ScrollOffset: s.ScrollOffset, ViewportSize: s.ViewportSize, ContentSize: s.ContentSize, RTL: s.RTL}
	}
	if s := r.Resize; s != nil {
		evt.Resize = &menu.ResizeSignal{ViewportSize: s.ViewportSize, ContentSize: s.ContentSize}
	}
	return evt
}

func (h *SessionHandlers) dispatchEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxSessionBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}
	var req sessionEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	evt := req.toEvent()
	logger := observability.SessionLogger(ctx, "")
	if evt.Type == services.EventSetSearchTerm {
		logger.Debug("search term updated", zap.String("term", observability.SanitizeSearchTerm(evt.SearchTerm)))
	}

	sessionID := requestctx.SessionID(ctx)
	snap, err := h.sessions.Dispatch(ctx, sessionID, evt)
	if err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.views.snapshot(sessionID, snap))
}

type allItemsResponse struct {
	SessionID  string      `json:"session_id"`
	Locale     string      `json:"locale"`
	Dir        string      `json:"dir"`
	Label      string      `json:"label"`
	SearchTerm string      `json:"search_term"`
	Groups     []groupView `json:"groups"`
	NoResults  bool        `json:"no_results"`
	Message    string      `json:"message,omitempty"`
}

func (h *SessionHandlers) allItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := requestctx.SessionID(ctx)
	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	groups, err := h.sessions.AllItems(ctx, sessionID)
	if err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	locale := sess.Snapshot.Locale
	resp := allItemsResponse{
		SessionID:  sessionID,
		Locale:     string(locale),
		Dir:        locale.Direction(),
		Label:      h.bundle.T(locale, "category.all"),
		SearchTerm: sess.Snapshot.SearchTerm,
		Groups:     h.views.groups(locale, groups),
		NoResults:  len(groups) == 0,
	}
	if resp.NoResults {
		resp.Message = h.bundle.T(locale, "search.no_results")
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *SessionHandlers) sessionPayload(sess services.Session) sessionResponse {
	return sessionResponse{
		ID:           sess.ID,
		RestaurantID: sess.RestaurantID,
		CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
		LastSeenAt:   sess.LastSeenAt.Format(time.RFC3339),
		Snapshot:     h.views.snapshot(sess.ID, sess.Snapshot),
	}
}

func writeSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found", http.StatusNotFound))
	case errors.Is(err, menu.ErrUnknownCategory):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category is not loaded", http.StatusUnprocessableEntity))
	case errors.Is(err, menu.ErrUnknownItem):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "item is not loaded", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrSessionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSessionLimit):
		httpx.WriteError(ctx, w, httpx.NewError("session_limit", "too many active sessions", http.StatusTooManyRequests))
	case errors.Is(err, services.ErrSessionServiceClosed):
		httpx.WriteError(ctx, w, httpx.NewError("session_service_unavailable", "session service is shutting down", http.StatusServiceUnavailable))
	default:
		observability.SessionLogger(ctx, "").Error("session request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("session_error", "failed to process session request", http.StatusInternalServerError))
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxSessionBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
