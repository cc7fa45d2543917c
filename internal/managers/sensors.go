package managers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors/mqttsub"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors/serialbridge"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors/simulator"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// SensorManager owns the configured sensor sources, all feeding one
// latest-value slot.
type SensorManager struct {
	Slot    *sensors.LatestSlot
	sources map[string]sensors.Source
	logger  *zap.SugaredLogger
}

// NewSensorManager creates every enabled sensor source from the config.
func NewSensorManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger) (*SensorManager, error) {
	sourceCfgs, err := configProvider.GetSensorSources()
	if err != nil {
		return nil, fmt.Errorf("error loading sensor configuration: %w", err)
	}

	m := &SensorManager{
		Slot:    sensors.NewLatestSlot(),
		sources: make(map[string]sensors.Source),
		logger:  logger,
	}

	for _, cfg := range sourceCfgs {
		if !cfg.Enabled {
			logger.Infof("skipping disabled sensor source [%s]", cfg.Name)
			continue
		}
		src, err := createSourceFromConfig(ctx, wg, cfg, m.Slot, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating sensor source [%s]: %w", cfg.Name, err)
		}
		m.sources[cfg.Name] = src
	}

	return m, nil
}

// StartSensorSources starts every configured source.
func (m *SensorManager) StartSensorSources() error {
	for name, src := range m.sources {
		m.logger.Infof("starting sensor source [%v]...", name)
		if err := src.Start(); err != nil {
			return fmt.Errorf("failed to start sensor source [%s]: %w", name, err)
		}
	}
	return nil
}

func createSourceFromConfig(ctx context.Context, wg *sync.WaitGroup, cfg config.SensorSourceData, slot *sensors.LatestSlot, logger *zap.SugaredLogger) (sensors.Source, error) {
	switch cfg.Type {
	case "serial", "bridge":
		log.Infof("initializing serial sensor bridge [%v]", cfg.Name)
		return serialbridge.NewStation(ctx, wg, cfg, slot, logger)
	case "mqtt":
		log.Infof("initializing MQTT sensor source [%v]", cfg.Name)
		return mqttsub.NewStation(ctx, wg, cfg, slot, logger)
	case "simulator":
		log.Infof("initializing simulated sensor source [%v]", cfg.Name)
		return simulator.NewStation(ctx, wg, cfg, slot, logger)
	default:
		return nil, fmt.Errorf("unknown sensor source type: %s", cfg.Type)
	}
}
