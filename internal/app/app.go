package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/faunatrack/server/internal/auth"
	"github.com/faunatrack/server/internal/config"
	"github.com/faunatrack/server/internal/conservation"
	"github.com/faunatrack/server/internal/db"
	"github.com/faunatrack/server/internal/feed"
	"github.com/faunatrack/server/internal/httpx"
	"github.com/faunatrack/server/internal/importer"
	"github.com/faunatrack/server/internal/middleware"
	"github.com/faunatrack/server/internal/species"
	"github.com/faunatrack/server/internal/tabular"
)

const (
	uploadField     = "file"
	feedHeartbeat   = 30 * time.Second
	healthPingLimit = 2 * time.Second
)

type App struct {
	cfg            config.Config
	db             *db.DB
	logger         *slog.Logger
	tokens         *auth.TokenManager
	authService    *auth.Service
	speciesService *species.Service
	planService    *conservation.Service
	hub            *feed.Hub
	upgrader       *websocket.Upgrader
	routes         map[string]map[string]http.Handler
}

func New(cfg config.Config, database *db.DB, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	uow := db.NewUnitOfWork(database)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	hub := feed.NewHub()

	a := &App{
		cfg:            cfg,
		db:             database,
		logger:         logger,
		tokens:         tokenManager,
		authService:    auth.NewService(database, uow, tokenManager, logger),
		speciesService: species.NewService(database, uow, hub, logger, cfg.SkippedDetailsLimit),
		planService:    conservation.NewService(database, uow, hub, logger, cfg.SkippedDetailsLimit),
		hub:            hub,
		upgrader:       feed.NewUpgrader(cfg.AllowedOrigins),
	}
	a.routes = a.buildRoutes()
	return a
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) buildRoutes() map[string]map[string]http.Handler {
	routes := make(map[string]map[string]http.Handler)
	handle := func(method, path string, protected bool, h http.HandlerFunc) {
		var handler http.Handler = h
		if protected {
			handler = middleware.RequireAuth(a.tokens, a.writeUnauthorized, h)
		}
		if routes[path] == nil {
			routes[path] = make(map[string]http.Handler)
		}
		routes[path][method] = handler
	}

	handle(http.MethodGet, "/health", false, a.handleHealth)

	handle(http.MethodPost, "/api/auth/register", false, a.handleRegister)
	handle(http.MethodPost, "/api/auth/login", false, a.handleLogin)
	handle(http.MethodGet, "/api/auth/me", true, a.handleMe)

	handle(http.MethodGet, "/api/species", true, a.handleListSpecies)
	handle(http.MethodPost, "/api/species", true, a.handleCreateSpecies)
	handle(http.MethodPost, "/api/import/import", true, a.handleImportSpecies)

	handle(http.MethodGet, "/api/conservation", true, a.handleListPlans)
	handle(http.MethodPost, "/api/conservation", true, a.handleCreatePlan)
	handle(http.MethodPost, "/api/conservation/import", true, a.handleImportPlans)
	handle(http.MethodGet, "/api/conservation/gantt", true, a.handleGantt)
	handle(http.MethodGet, "/api/conservation/rapport", true, a.handleReport)
	handle(http.MethodGet, "/api/conservation/template", true, a.handleTemplate)
	handle(http.MethodGet, "/api/conservation/export", true, a.handleExport)
	handle(http.MethodGet, "/api/conservation/ws", true, a.handleFeedWS)

	return routes
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")

	path := r.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	methods, ok := a.routes[path]
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	handler, ok := methods[r.Method]
	if !ok {
		allowed := make([]string, 0, len(methods))
		for m := range methods {
			allowed = append(allowed, m)
		}
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	handler.ServeHTTP(w, r)
}

func (a *App) writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
}

// currentUser is only called behind RequireAuth.
func currentUser(r *http.Request) middleware.AuthUser {
	user, _ := middleware.UserFromContext(r.Context())
	return user
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingLimit)
	defer cancel()

	status := "connected"
	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Warn("health check ping failed", "error", err)
		status = "unreachable"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": status})
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.authService.Register(r.Context(), req)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, httpx.MessageResponse{ID: user.ID, Msg: "user created"})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := a.authService.Login(r.Context(), req)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.authService.Me(r.Context(), currentUser(r).ID)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (a *App) handleListSpecies(w http.ResponseWriter, r *http.Request) {
	list, err := a.speciesService.List(r.Context())
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	if list == nil {
		list = []species.Species{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (a *App) handleCreateSpecies(w http.ResponseWriter, r *http.Request) {
	var req species.CreateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := a.speciesService.Create(r.Context(), currentUser(r).ID, req)
	if err != nil {
		a.writeSpeciesError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, httpx.MessageResponse{ID: created.ID, Msg: "species created"})
}

func (a *App) handleImportSpecies(w http.ResponseWriter, r *http.Request) {
	filename, data, err := httpx.ReadUpload(w, r, uploadField, a.cfg.MaxUploadBytes)
	if err != nil {
		a.writeUploadError(w, r, err)
		return
	}

	summary, err := a.speciesService.Import(r.Context(), currentUser(r).ID, filename, data)
	if err != nil {
		a.writeImportError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, summary)
}

func (a *App) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := a.planService.List(r.Context())
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, conservation.Views(plans))
}

func (a *App) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req conservation.CreateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := a.planService.Create(r.Context(), currentUser(r).ID, req)
	if err != nil {
		a.writeConservationError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, httpx.MessageResponse{ID: plan.ID, Msg: "conservation plan created"})
}

func (a *App) handleImportPlans(w http.ResponseWriter, r *http.Request) {
	filename, data, err := httpx.ReadUpload(w, r, uploadField, a.cfg.MaxUploadBytes)
	if err != nil {
		a.writeUploadError(w, r, err)
		return
	}

	summary, err := a.planService.Import(r.Context(), currentUser(r).ID, filename, data)
	if err != nil {
		a.writeImportError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, summary)
}

func (a *App) handleGantt(w http.ResponseWriter, r *http.Request) {
	entries, err := a.planService.Gantt(r.Context())
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.planService.Report(r.Context())
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func (a *App) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := conservation.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.writeConservationError(w, r, err)
		return
	}

	body, err := conservation.Template(format)
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	httpx.WriteAttachment(w, format.ContentType(), "conservation_plans_template."+string(format), body)
}

func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := conservation.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.writeConservationError(w, r, err)
		return
	}

	plans, err := a.planService.List(r.Context())
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	body, err := conservation.Export(format, plans)
	if err != nil {
		a.writeInternal(w, r, err)
		return
	}
	httpx.WriteAttachment(w, format.ContentType(), "conservation_plans."+string(format), body)
}

func (a *App) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := a.hub.ServeWS(w, r, a.upgrader, user.ID, feedHeartbeat); err != nil {
		a.logger.Debug("feed websocket closed", "user_id", user.ID, "error", err)
	}
}

func (a *App) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUsernameTaken):
		httpx.WriteError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, auth.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "user not found")
	default:
		a.writeInternal(w, r, err)
	}
}

func (a *App) writeSpeciesError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, species.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, species.ErrDuplicate):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		a.writeInternal(w, r, err)
	}
}

func (a *App) writeConservationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conservation.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), conservation.ErrInvalidInput.Error()+": "))
	default:
		a.writeInternal(w, r, err)
	}
}

func (a *App) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrUploadTooLarge):
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, httpx.ErrNoFile):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, httpx.ErrNotMultipart):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrNotMultipart.Error())
	default:
		a.writeInternal(w, r, err)
	}
}

func (a *App) writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.Is(err, tabular.ErrParse),
		errors.Is(err, tabular.ErrEmptyInput),
		errors.Is(err, importer.ErrMissingColumns):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, importer.ErrImportFailed):
		a.logger.Error("import failed", "path", r.URL.Path, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, importer.ErrImportFailed.Error())
	default:
		a.writeInternal(w, r, err)
	}
}

// writeInternal logs err and answers with a generic 500.
func (a *App) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}
