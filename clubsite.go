// Package clubsite is the backend of a club's marketing site built with Go
// and Echo. It serves the single-page app, answers link-preview crawlers with
// server-rendered social previews, exposes the public and admin content APIs,
// and relays platform events to members through a Telegram bot.
package clubsite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/clubsite/telegram"
)

// App is the central clubsite application. It wires together the store,
// caches, dispatcher, handlers, and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  Backend
	Cache  *ContentCache
	Log    *zap.Logger

	dispatcher   *Dispatcher
	messenger    Messenger
	previewCache *PreviewCache
	httpClient   *http.Client
	metrics      *siteMetrics
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
}

// New creates an App serving store and registers all middleware and routes.
func New(cfg SiteConfig, store Backend, log *zap.Logger, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("clubsite: %w", err)
	}
	if store == nil {
		return nil, errors.New("clubsite: store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:       cfg,
		Echo:         e,
		Store:        store,
		Cache:        NewContentCache(store, cfg.ContentCacheTTL),
		Log:          log,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		metrics:      newSiteMetrics(),
		loginLimiter: NewLoginLimiter(5, time.Minute),
		staticDir:    cfg.StaticDir,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.messenger == nil {
		a.messenger = telegram.New(cfg.TelegramBotToken, telegram.WithBaseURL(cfg.TelegramAPIURL))
	}
	a.dispatcher = NewDispatcher(store, a.messenger, log.Named("dispatch"), cfg.URL, cfg.DefaultLocale)
	a.dispatcher.metrics = a.metrics
	a.dispatcher.SetRateLimit(cfg.TelegramRateLimit)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

// Start runs the HTTP server until it is shut down.
func (a *App) Start() error {
	a.Log.Info("listening", zap.String("addr", a.Config.Addr))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.metrics.registry,
	}))
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	// Social previews
	e.GET("/api/og", a.handlePreview)
	e.GET("/api/og/:slug", a.handlePreview)

	// Dispatch triggers answer every method themselves.
	secret := a.Config.DispatchSecret
	e.Any("/api/notify/new-event", dispatchEndpoint(secret, a.dispatcher.HandleNewEvent))
	e.Any("/api/notify/new-match", dispatchEndpoint(secret, a.dispatcher.HandleNewMatch))
	e.Any("/api/notify/role-granted", dispatchEndpoint(secret, a.dispatcher.HandleRoleGranted))

	// Public content API
	e.GET("/api/content", a.handleContentList)
	e.GET("/api/content/:slug", a.handleContentGet)
	e.POST("/api/content/:slug/view", a.handleContentView)
	e.GET("/api/categories", a.handleCategories)
	e.GET("/api/pages/:page/sections", a.handlePageSections)

	// Admin API
	e.POST("/api/admin/login", a.handleAdminLogin)
	e.POST("/api/admin/logout", handleAdminLogout)
	e.GET("/api/admin/session", handleAdminSession)

	admin := e.Group("/api/admin", requireAdmin)
	admin.GET("/content", a.handleAdminContentList)
	admin.GET("/content/:slug", a.handleAdminContentGet)
	admin.PUT("/content/:slug", a.handleAdminContentSave)
	admin.POST("/content", a.handleAdminContentSave)
	admin.DELETE("/content/:slug", a.handleAdminContentDelete)
	admin.GET("/pages/:page/sections", a.handleAdminSectionList)
	admin.POST("/pages/:page/sections", a.handleAdminSectionSave)
	admin.PUT("/pages/:page/sections/:id", a.handleAdminSectionSave)
	admin.DELETE("/pages/:page/sections/:id", a.handleAdminSectionDelete)
	admin.POST("/pages/:page/order", a.handleAdminSectionReorder)
	admin.GET("/images", a.handleImageList)
	admin.POST("/images", a.handleImageUpload)
	admin.DELETE("/images/:filename", a.handleImageDelete)
	admin.GET("/recipients", a.handleRecipientList)
	admin.POST("/recipients/:id/ban", a.handleRecipientBan)
	admin.POST("/recipients/:id/unban", a.handleRecipientUnban)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	a.loginLimiter.Stop()
	var errs []error
	if a.previewCache != nil {
		errs = append(errs, a.previewCache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// evictPreviews drops cached preview pages after a content change.
func (a *App) evictPreviews(ctx context.Context, slugs ...string) {
	if a.previewCache == nil {
		return
	}
	if err := a.previewCache.Evict(ctx, slugs...); err != nil {
		a.Log.Warn("preview cache evict failed", zap.Strings("slugs", slugs), zap.Error(err))
	}
}
