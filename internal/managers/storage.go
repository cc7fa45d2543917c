// Package managers wires configured sensor sources and persistence sinks to
// the control loop and owns their lifecycles.
package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/storage"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/storage/mqttpub"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/storage/sqlite"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// SinkManager holds our active persistence sinks
type SinkManager struct {
	Sinks       []Sink
	Distributor chan storage.Event
}

// Sink holds a persistence backend's interface as well as a channel for
// passing events to it
type Sink struct {
	Engine storage.SinkInterface
	C      chan<- storage.Event
}

// NewSinkManager creates a SinkManager populated with every configured sink
func NewSinkManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider) (*SinkManager, error) {
	cfg, err := configProvider.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading storage configuration: %w", err)
	}

	m := &SinkManager{
		Distributor: make(chan storage.Event, 20),
	}

	go m.startEventDistributor(ctx, wg)

	if cfg.SQLite != nil && cfg.SQLite.Path != "" {
		s, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return m, fmt.Errorf("could not add SQLite audit sink: %w", err)
		}
		m.Sinks = append(m.Sinks, Sink{Engine: s, C: s.StartSink(ctx, wg)})
		log.Infof("SQLite audit sink enabled at %s", cfg.SQLite.Path)
	}

	if cfg.MQTT != nil && cfg.MQTT.BrokerURL != "" {
		s, err := mqttpub.New(*cfg.MQTT)
		if err != nil {
			return m, fmt.Errorf("could not add MQTT telemetry sink: %w", err)
		}
		m.Sinks = append(m.Sinks, Sink{Engine: s, C: s.StartSink(ctx, wg)})
		log.Infof("MQTT telemetry sink enabled for %s", cfg.MQTT.BrokerURL)
	}

	return m, nil
}

// Publish hands an event to the distributor without ever blocking the
// caller. A full distributor drops the event with a logged warning.
func (m *SinkManager) Publish(ev storage.Event) {
	select {
	case m.Distributor <- ev:
	default:
		log.Warn("audit event distributor full, dropping event")
	}
}

// startEventDistributor receives audit events from the control loop and fans
// them out to the configured sinks
func (m *SinkManager) startEventDistributor(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case ev := <-m.Distributor:
			for _, s := range m.Sinks {
				select {
				case s.C <- ev:
				default:
					log.Warn("persistence sink busy, dropping event")
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
