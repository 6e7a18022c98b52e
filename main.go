package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/padraicbc/keibadata/config"
	"github.com/padraicbc/keibadata/convert"
	"github.com/padraicbc/keibadata/db"
	"github.com/padraicbc/keibadata/fetch"
	"github.com/padraicbc/keibadata/handlers"
	"github.com/padraicbc/keibadata/ingest"
	"github.com/padraicbc/keibadata/jobs"
	applog "github.com/padraicbc/keibadata/logger"
	mw "github.com/padraicbc/keibadata/middleware"
	"github.com/padraicbc/keibadata/scrape"
	"github.com/padraicbc/keibadata/store"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	bdb := db.Setup(cfg)
	defer bdb.Close()

	if err := db.CreateTables(context.Background(), bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	fetcher := fetch.New(cfg.Scraping, logger)
	listings := scrape.NewListingScraper(fetcher, cfg.Scraping.BaseURL, logger)
	races := scrape.NewRaceScraper(fetcher, cfg.Scraping.BaseURL, logger)
	st := store.New(bdb)
	orch := ingest.New(listings, races, convert.New(logger), st, logger)
	runner := jobs.NewRunner(logger)

	h := handlers.New(st, orch, runner, cfg.JWTKey(), logger)

	e := echo.New()
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*", "Authorization"},
		AllowCredentials: true,
	}))

	// Public
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/kd/signin", h.Signin)

	// Protected – require valid JWT in Authorization header
	kd := e.Group("/kd", mw.JWT(cfg.JWTKey()))
	kd.POST("/scraping/start", h.StartScraping)
	kd.GET("/scraping/jobs/:id", h.ScrapingJob)
	kd.DELETE("/scraping/jobs/:id", h.CancelScrapingJob)
	kd.GET("/scraping/status", h.ScrapingStatus)
	kd.POST("/scraping/cleanup", h.Cleanup)
	kd.GET("/races", h.Races)
	kd.GET("/races/:id", h.Race)

	if cfg.Debug {
		logger.Info("starting server", zap.String("mode", "debug"), zap.String("addr", cfg.Port))
		if err := e.Start(cfg.Port); err != nil {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	if err := s.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
		logger.Error("tls server exited", zap.Error(err))
		os.Exit(1)
	}
}
