package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"mt5-gateway/internal/api"
	"mt5-gateway/internal/events"
	"mt5-gateway/internal/gateway"
	"mt5-gateway/internal/journal"
	"mt5-gateway/internal/monitor"
	"mt5-gateway/internal/push"
	"mt5-gateway/internal/stream"
	"mt5-gateway/pkg/config"
	"mt5-gateway/pkg/db"
	"mt5-gateway/pkg/mt5"
	"mt5-gateway/pkg/mt5/bridge"
	"mt5-gateway/pkg/mt5/sim"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting gateway on port %s", cfg.Port)
	log.Printf("using database at %s", cfg.DBPath)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	var term mt5.Terminal
	if cfg.UseSimTerminal {
		log.Printf("terminal: in-process simulator (%d symbols)", len(cfg.SimSymbols))
		term = simTerminal(cfg.SimSymbols)
	} else {
		log.Printf("terminal: bridge at %s", cfg.BridgeURL)
		term = bridge.New(cfg.BridgeURL)
	}

	bus := events.NewBus()
	metrics := monitor.New()
	hub := push.NewHub()

	gw := gateway.New(gateway.Options{
		Terminal: term,
		Bus:      bus,
		Hub:      hub,
		Metrics:  metrics,
		Stream: stream.Config{
			PollInterval:   cfg.Tuning.PollInterval(),
			ErrorThreshold: cfg.Tuning.StreamErrorThreshold,
		},
		StopTimeout:      cfg.Tuning.StopTimeout(),
		OrderDeviation:   cfg.Tuning.OrderDeviation,
		RequoteDeviation: cfg.Tuning.RequoteDeviation,
		CloseMaxAttempts: cfg.Tuning.CloseMaxAttempts,
		CloseRetryPause:  cfg.Tuning.CloseRetryPause(),
	})

	jnl := journal.New(database, bus)
	jnl.Start()

	// Connect at boot when credentials are configured; otherwise wait for
	// POST /api/connect.
	if cfg.Login != 0 && cfg.Server != "" {
		if _, err := gw.Connect(cfg.Server, cfg.Login, cfg.Password); err != nil {
			log.Printf("initial connect failed: %v", err)
		}
	}

	server := api.NewServer(gw, database, hub, metrics, cfg.APISecret, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down")
	if err := gw.Disconnect(); err != nil {
		log.Printf("disconnect: %v", err)
	}
	jnl.Stop()
}

// simTerminal seeds the simulator with plausible FX/metal instruments so the
// gateway is fully exercisable without a live venue.
func simTerminal(symbols []string) *sim.Terminal {
	t := sim.New()
	for i, name := range symbols {
		info := mt5.SymbolInfo{
			Name:        name,
			Point:       0.00001,
			Digits:      5,
			Spread:      12,
			TradeMode:   mt5.TradeModeFull,
			VolumeMin:   0.01,
			VolumeMax:   100,
			VolumeStep:  0.01,
			StopsLevel:  10,
			FillingMask: mt5.FillingFOK | mt5.FillingIOC,
		}
		base := 1.1 + float64(i)*0.25
		if name == "XAUUSD" {
			info.Point = 0.01
			info.Digits = 2
			base = 2400
		}
		t.AddSymbol(info, base, base+float64(info.Spread)*info.Point)
	}
	t.SetDrift(0.00001)
	return t
}
