// Package app assembles the chamber controller and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/actuators"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/audit"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/controlloop"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/engine"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/managers"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/server"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/thresholds"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	// Relay hardware. Failure to acquire it is the one startup-fatal error:
	// without relays the loop has nothing to drive.
	bank, err := newRelayBank(cfg.Hardware)
	if err != nil {
		return err
	}
	coordinator := actuators.NewCoordinator(bank, a.logger)

	// Persistence sinks and their fan-out distributor
	sinkManager, err := managers.NewSinkManager(ctx, &wg, a.configProvider)
	if err != nil {
		bank.Close()
		return err
	}

	// Sensor sources feeding the latest-value slot
	sensorManager, err := managers.NewSensorManager(ctx, &wg, a.configProvider, a.logger)
	if err != nil {
		bank.Close()
		return err
	}
	if err := sensorManager.StartSensorSources(); err != nil {
		bank.Close()
		return err
	}

	// Decision stage
	model := thresholds.Load(cfg.Control.ThresholdsFile)
	auditLog := audit.NewLog(cfg.Control.AuditLength)
	loop := controlloop.New(
		engine.NewRuleBased(),
		coordinator,
		sensorManager.Slot,
		auditLog,
		sinkManager,
		model,
		cfg.Control.Interval(),
		a.logger,
	)
	// Command surface, built before the loop starts so a config error here
	// still leaves the hardware untouched
	var srv *server.Controller
	if cfg.HTTP != nil {
		srv, err = server.NewController(ctx, &wg, *cfg.HTTP, loop, coordinator, auditLog, a.logger)
		if err != nil {
			bank.Close()
			return err
		}
	}

	loop.Start(ctx, &wg)
	if srv != nil {
		if err := srv.Start(); err != nil {
			loop.Stop()
			cancel()
			wg.Wait()
			coordinator.Close()
			return err
		}
	}

	log.Info("chamber controller started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Stop the loop first so it releases every actuator, then stop the rest.
	loop.Stop()
	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()

	if err := coordinator.Close(); err != nil {
		log.Errorf("error releasing relay hardware: %v", err)
	}
	log.Info("shutdown complete")

	return nil
}

func newRelayBank(cfg config.HardwareData) (actuators.RelayBank, error) {
	switch cfg.Driver {
	case "", "gobot":
		pins := actuators.PinMap{}
		for name, pin := range cfg.Pins {
			matched := false
			for _, a := range types.Actuators {
				if string(a) == name {
					pins[a] = pin
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unknown actuator %q in hardware pin map", name)
			}
		}
		if len(pins) == 0 {
			pins = actuators.DefaultPins
		}
		return actuators.NewGobotBank(pins)
	case "sim":
		return actuators.NewSimBank(), nil
	default:
		return nil, fmt.Errorf("unknown relay driver: %s", cfg.Driver)
	}
}
