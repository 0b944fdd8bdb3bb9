// Package app assembles the HTTP router from the feature modules.
package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blogicum/accounts"
	"blogicum/backoffice"
	"blogicum/blog"
	"blogicum/cache"
	"blogicum/common"
	"blogicum/config"
	"blogicum/metrics"
	"blogicum/pages"
	"blogicum/web"
)

const SessionName = "blogicum_session"

type App struct {
	Router  *gin.Engine
	Cache   *cache.Store
	Metrics *metrics.Metrics
}

// New builds the router. db must already be migrated.
func New(cfg *config.Config, db *gorm.DB) (*App, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	if err := m.InstrumentDB(db); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(pages.Recovery(), gin.Logger(), m.Middleware())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(SessionName, store))

	router.SetHTMLTemplate(web.Templates())
	router.Use(common.LoadUser(db), common.CSRF())

	router.Static("/media", cfg.MediaDir)
	m.RegisterRoutes(router)

	pageCache := cache.NewStore(cfg.CacheDir, cfg.CacheTTL)

	accounts.NewAccountsModule(db, pageCache).RegisterRoutes(router)
	blog.NewBlogModule(db, blog.Options{
		PageSize: cfg.PageSize,
		MediaDir: cfg.MediaDir,
		Cache:    pageCache,
	}).RegisterRoutes(router)
	backoffice.NewBackofficeModule(db, cfg.Staff(), pageCache).RegisterRoutes(router)
	pages.NewPagesModule(db, cfg.Domain).RegisterRoutes(router)

	return &App{Router: router, Cache: pageCache, Metrics: m}, nil
}

// SweepCache removes expired pages every interval until ctx is done.
func (a *App) SweepCache(ctx context.Context, interval time.Duration) {
	if a.Cache == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Cache.ClearOld(); err != nil {
				log.Printf("sweep page cache: %v", err)
			}
		}
	}
}
