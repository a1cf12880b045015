// Package api is the HTTP surface over the presentation adapter.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-hive/hivewatch/internal/httputil"
	"github.com/go-hive/hivewatch/internal/presenter"
	"github.com/go-hive/hivewatch/internal/suppression"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/go-hive/hivewatch/internal/surveillance"
)

// Presenter is the adapter surface the handlers drive.
type Presenter interface {
	ActiveAlert() (surveillance.ActiveAlert, bool)
	WatchedEntities() []surveillance.WatchedEntity
	StartWatching(entityID, label string) error
	StopWatching(entityID string) bool
	CloseActiveAlert() bool
	SuppressActiveAlert(ctx context.Context, d time.Duration) (bool, error)
	SuppressActiveAlertForSession(ctx context.Context) (bool, error)
	IsSuppressed(ctx context.Context, entityID string) (suppression.Status, error)
	Reactivate(ctx context.Context, entityID string) (bool, error)
	Rules(ctx context.Context) ([]model.Rule, error)
	Subscribe(buffer int) (<-chan presenter.Event, func())
}

// Middleware wraps a route handler, labelled by its pattern.
type Middleware func(route string, h http.Handler) http.Handler

func NewHandler(cfg *Config, p Presenter, mw Middleware) (*Handler, error) {
	if p == nil {
		return nil, fmt.Errorf("presenter is not defined")
	}
	if mw == nil {
		mw = func(_ string, h http.Handler) http.Handler { return h }
	}
	h := &Handler{cfg: cfg, presenter: p, mux: http.NewServeMux()}

	h.route(mw, "POST /watch", h.startWatching)
	h.route(mw, "DELETE /watch", h.stopWatching)
	h.route(mw, "GET /watch", h.watched)
	h.route(mw, "GET /alert", h.activeAlert)
	h.route(mw, "POST /alert/close", h.closeAlert)
	h.route(mw, "POST /alert/suppress", h.suppressAlert)
	h.route(mw, "GET /suppressions", h.rules)
	h.route(mw, "GET /suppressions/{entityId}", h.isSuppressed)
	h.route(mw, "DELETE /suppressions/{entityId}", h.reactivate)
	h.mux.Handle("GET /events", mw("GET /events", http.HandlerFunc(h.events)))
	return h, nil
}

// MaxSuppressMinutes is the longest bounded suppression a request may ask for.
const MaxSuppressMinutes = int(math.MaxInt64 / int64(time.Minute))

type Handler struct {
	cfg       *Config
	presenter Presenter
	mux       *http.ServeMux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// route registers fn with the request timeout applied to its context.
func (h *Handler) route(mw Middleware, pattern string, fn func(ctx context.Context, w http.ResponseWriter, r *http.Request)) {
	h.mux.Handle(pattern, mw(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
		defer cancel()
		fn(ctx, w, r.WithContext(ctx))
	})))
}

func requireJSON(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if t := r.Header.Get("Content-Type"); !strings.HasPrefix(t, "application/json") {
		httputil.RespUnsupportedMediaType(ctx, w, `{"error": "content-type %q is not application/json"}`, t)
		return false
	}
	return true
}

func (h *Handler) startWatching(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !requireJSON(ctx, w, r) {
		return
	}
	var req WatchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}
	req.EntityID = strings.TrimSpace(req.EntityID)
	if err := h.presenter.StartWatching(req.EntityID, req.Label); err != nil {
		if errors.Is(err, surveillance.ErrEmptyEntity) {
			httputil.RespBadRequest(ctx, w, `{"error": "entityId is required"}`)
			return
		}
		httputil.RespInternalError(ctx, w, "start watching %s: %v", req.EntityID, err)
		return
	}
	httputil.RespJSON(ctx, w, http.StatusCreated, req)
}

func (h *Handler) stopWatching(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entityId")
	if entityID == "" {
		httputil.RespBadRequest(ctx, w, `{"error": "entityId is required"}`)
		return
	}
	if !h.presenter.StopWatching(entityID) {
		httputil.RespNotFound(ctx, w, `{"error": "%s is not watched"}`, entityID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) watched(ctx context.Context, w http.ResponseWriter, _ *http.Request) {
	httputil.RespJSON(ctx, w, http.StatusOK, WatchListResponse{Entities: h.presenter.WatchedEntities()})
}

func (h *Handler) activeAlert(ctx context.Context, w http.ResponseWriter, _ *http.Request) {
	var resp AlertResponse
	if alert, ok := h.presenter.ActiveAlert(); ok {
		resp.Alert = &alert
	}
	httputil.RespJSON(ctx, w, http.StatusOK, resp)
}

func (h *Handler) closeAlert(ctx context.Context, w http.ResponseWriter, _ *http.Request) {
	httputil.RespJSON(ctx, w, http.StatusOK, CloseResponse{Closed: h.presenter.CloseActiveAlert()})
}

func (h *Handler) suppressAlert(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !requireJSON(ctx, w, r) {
		return
	}
	var req SuppressRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}

	var (
		ok  bool
		err error
	)
	switch {
	case req.Session && req.Minutes != 0:
		httputil.RespBadRequest(ctx, w, `{"error": "minutes and session are mutually exclusive"}`)
		return
	case req.Session:
		ok, err = h.presenter.SuppressActiveAlertForSession(ctx)
	case req.Minutes > MaxSuppressMinutes:
		httputil.RespBadRequest(ctx, w, `{"error": "minutes must not exceed %d"}`, MaxSuppressMinutes)
		return
	case req.Minutes > 0:
		ok, err = h.presenter.SuppressActiveAlert(ctx, time.Duration(req.Minutes)*time.Minute)
	default:
		httputil.RespBadRequest(ctx, w, `{"error": "minutes must be positive"}`)
		return
	}
	if errors.Is(err, surveillance.ErrInvalidDuration) || errors.Is(err, suppression.ErrInvalidDuration) {
		httputil.RespBadRequest(ctx, w, `{"error": "%v"}`, err)
		return
	}
	if err != nil {
		httputil.RespInternalError(ctx, w, "suppress active alert: %v", err)
		return
	}
	httputil.RespJSON(ctx, w, http.StatusOK, SuppressResponse{Suppressed: ok})
}

func (h *Handler) rules(ctx context.Context, w http.ResponseWriter, _ *http.Request) {
	rules, err := h.presenter.Rules(ctx)
	var persistErr *suppression.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		httputil.RespInternalError(ctx, w, "list suppressions: %v", err)
		return
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	httputil.RespJSON(ctx, w, http.StatusOK, RulesResponse{Rules: rules})
}

func (h *Handler) isSuppressed(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entityId")
	status, err := h.presenter.IsSuppressed(ctx, entityID)
	if err != nil {
		httputil.RespInternalError(ctx, w, "check suppression of %s: %v", entityID, err)
		return
	}
	httputil.RespJSON(ctx, w, http.StatusOK, SuppressionResponse{EntityID: entityID, Status: status})
}

func (h *Handler) reactivate(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entityId")
	removed, err := h.presenter.Reactivate(ctx, entityID)
	if err != nil {
		httputil.RespInternalError(ctx, w, "reactivate %s: %v", entityID, err)
		return
	}
	httputil.RespJSON(ctx, w, http.StatusOK, ReactivateResponse{Reactivated: removed})
}
