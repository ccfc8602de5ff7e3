package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/iliyamo/receipt-printer/internal/clock"
	"github.com/iliyamo/receipt-printer/internal/config"
	"github.com/iliyamo/receipt-printer/internal/database"
	"github.com/iliyamo/receipt-printer/internal/guest"
	"github.com/iliyamo/receipt-printer/internal/handler"
	"github.com/iliyamo/receipt-printer/internal/middleware"
	"github.com/iliyamo/receipt-printer/internal/receipt"
	"github.com/iliyamo/receipt-printer/internal/repository"
	"github.com/iliyamo/receipt-printer/internal/router"
	"github.com/iliyamo/receipt-printer/internal/service"
	"github.com/iliyamo/receipt-printer/internal/sink"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.Env, cfg.LogLevel)
	clk := clock.Real(cfg.Location)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openGuestStore(ctx, cfg, log)
	defer closeStore()

	settings, err := config.OpenSettings(cfg.SettingsFile)
	if err != nil {
		log.WithError(err).Fatal("load settings")
	}
	styles := config.NewStyleSource(settings)
	if _, err := styles.Snapshot(); err != nil {
		log.WithError(err).Fatal("invalid receipt style")
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	out := openSink(cfg, rdb, log)
	defer out.Close()

	printer := &service.Printer{
		Composer:      receipt.NewComposer(receipt.NewFontCache(cfg.FontDirs, log), clk),
		Sink:          out,
		Styles:        styles,
		Clock:         clk,
		Width:         cfg.PrintWidthPx,
		PaperWidthMM:  cfg.PaperWidthMM,
		PaperHeightMM: cfg.PaperHeightMM,
		Log:           log,
	}
	ledger := guest.NewLedger(store, clk)

	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORS())

	router.RegisterRoutes(e, handler.Info(cfg.SinkKind, cfg.MQTT.Topic, cfg.MQTT.QoS))
	router.RegisterAdmin(e, router.Handlers{
		Print:    handler.NewPrintHandler(printer, log),
		Admin:    handler.NewAdminGuestHandler(ledger, log),
		Settings: handler.NewSettingsHandler(styles, printer, log),
		Session: &handler.SessionHandler{
			PassHash:    cfg.UIPassHash,
			Secret:      cfg.SessionSecret,
			CookieName:  cfg.CookieName,
			RememberTTL: cfg.SessionTTL(),
			Secure:      cfg.CookieSecure,
			Clock:       clk,
			Log:         log,
		},
	}, middleware.AdminAuth(cfg.APIKey, cfg.SessionSecret, cfg.CookieName, time.Now))
	router.RegisterGuest(e, handler.NewGuestHandler(ledger, printer, log),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "sink": cfg.SinkKind}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

func openGuestStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (guest.Store, func()) {
	switch cfg.GuestStore {
	case config.GuestStoreMySQL:
		db, err := database.Open(ctx, cfg.DB)
		if err != nil {
			log.WithError(err).Fatal("connect mysql")
		}
		repo := repository.NewGuestRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("guest schema")
		}
		return repo, func() { _ = db.Close() }
	case config.GuestStoreFile:
		repo, err := repository.OpenGuestFile(cfg.GuestDBFile)
		if err != nil {
			log.WithError(err).Fatal("open guest store")
		}
		return repo, func() {}
	default:
		log.Fatalf("unknown GUEST_STORE %q", cfg.GuestStore)
		return nil, nil
	}
}

func openSink(cfg config.Config, rdb *redis.Client, log *logrus.Logger) sink.Sink {
	switch cfg.SinkKind {
	case sink.KindMQTT:
		return sink.NewMQTTSink(cfg.MQTT, log)
	case sink.KindAMQP:
		return sink.NewAMQPSink(cfg.AMQPURL, cfg.PrintQueue, log)
	case sink.KindRedis:
		if rdb == nil {
			log.Warn("redis sink selected but redis is unavailable; prints will fail")
		}
		return sink.NewRedisSink(rdb, cfg.MQTT.Topic)
	default:
		log.Fatalf("unknown SINK_KIND %q", cfg.SinkKind)
		return nil
	}
}
