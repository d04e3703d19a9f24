package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesim-core/internal/advisor"
	"tradesim-core/internal/api"
	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/engine"
	"tradesim-core/internal/events"
	"tradesim-core/internal/ledger"
	"tradesim-core/internal/market"
	"tradesim-core/internal/monitor"
	"tradesim-core/internal/rank"
	"tradesim-core/internal/settlement"
	"tradesim-core/pkg/config"
	"tradesim-core/pkg/db"
	"tradesim-core/pkg/i18n"
	"tradesim-core/pkg/instruments"
	"tradesim-core/pkg/marketdata"
	"tradesim-core/pkg/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.Port)
	log.Printf(i18n.Get("UsingDBPath"), cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf(i18n.Get("DBInitFailed"), err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf(i18n.Get("DBMigrationsFailed"), err)
	}
	queries := database.Queries()

	// Instrument catalog (builtin unless an overlay file is present)
	catalog := instruments.Builtin()
	if cfg.InstrumentsPath != "" {
		if overlay, err := instruments.LoadFile(cfg.InstrumentsPath); err == nil {
			catalog = overlay
			log.Printf(i18n.Get("CatalogOverlayUsed"), cfg.InstrumentsPath, overlay.Len())
		} else if !os.IsNotExist(err) {
			log.Printf(i18n.Get("CatalogOverlayBad"), cfg.InstrumentsPath, err)
		}
	}

	timeframe, err := candles.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		timeframe = 5 * time.Second
	}

	// Market side
	store := candles.NewStore()
	var client *marketdata.Client
	if !cfg.UseSyntheticFeed && cfg.MarketAPIKey != "" {
		client = marketdata.NewClient(cfg.MarketAPIKey, cfg.MarketAPIBase)
	}
	feed := market.NewFeed(store, bus, client, catalog, timeframe)

	// Player side
	wallet := balance.NewWallet(cfg.InitialBalance)
	book := ledger.NewLedger(wallet, store, bus)
	ranks := rank.NewTracker(bus)
	settler := settlement.NewSettler(store, wallet, ranks, bus)
	signals := advisor.NewAdvisor(book, wallet, bus)

	sysMetrics := monitor.NewSystemMetrics()
	log.Println(i18n.Get("MetricsInit"))

	// Device-bound session, created on first run
	sessionID := session.DeviceID()
	sess, err := queries.GetSession(ctx, sessionID)
	if err == db.ErrNotFound {
		sess = db.Session{ID: sessionID, Balance: cfg.InitialBalance, ProMode: cfg.ProMode}
		if err := queries.UpsertSession(ctx, sess); err != nil {
			log.Fatalf(i18n.Get("SessionLoadFailed"), err)
		}
	} else if err != nil {
		log.Fatalf(i18n.Get("SessionLoadFailed"), err)
	}

	history, err := queries.GetHistory(ctx, sessionID, 200)
	if err != nil {
		log.Printf(i18n.Get("SessionLoadFailed"), err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	eng := engine.NewImpl(engine.Config{
		Store:     store,
		Feed:      feed,
		Wallet:    wallet,
		Book:      book,
		Settler:   settler,
		Ranks:     ranks,
		Advisor:   signals,
		Bus:       bus,
		Catalog:   catalog,
		Metrics:   sysMetrics,
		Queries:   queries,
		SessionID: sessionID,
		Meta: engine.SystemStatus{
			Version:       buildVersion,
			StartedAt:     time.Now(),
			SyntheticFeed: client == nil,
			Language:      cfg.Language,
		},
	})
	eng.Restore(sess, history)
	eng.Start(ctx, cfg.OpenInstruments, cfg.ActiveInstrument)

	// API
	server := api.NewServer(eng, bus, sysMetrics, sessionID, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println(i18n.Get("ShuttingDown"))
}
