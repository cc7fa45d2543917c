// Package simulator generates a synthetic sensor feed for bench testing the
// controller without chamber hardware.
package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// Station publishes a slow random walk around fruiting-friendly values.
type Station struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	config config.SensorSourceData
	slot   *sensors.LatestSlot
	logger *zap.SugaredLogger
}

// NewStation creates a simulated sensor source.
func NewStation(ctx context.Context, wg *sync.WaitGroup, cfg config.SensorSourceData, slot *sensors.LatestSlot, logger *zap.SugaredLogger) (*Station, error) {
	return &Station{
		ctx:    ctx,
		wg:     wg,
		config: cfg,
		slot:   slot,
		logger: logger,
	}, nil
}

func (s *Station) Name() string {
	return s.config.Name
}

// Start launches the walk goroutine, emitting a snapshot every 2 seconds.
func (s *Station) Start() error {
	s.logger.Infof("starting simulated sensor source [%s]", s.config.Name)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		co2 := 800.0
		temp := 21.0
		humidity := 88.0

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				co2 += rand.Float64()*100 - 45
				temp += rand.Float64()*0.4 - 0.2
				humidity += rand.Float64()*1.0 - 0.5

				snap := types.SensorSnapshot{
					CO2:         int(co2),
					Temperature: temp,
					Humidity:    humidity,
					Phase:       types.Fruiting,
					ObservedAt:  time.Now(),
				}
				if err := sensors.Plausible(snap); err != nil {
					// Walked out of bounds; pull back toward the center.
					co2, temp, humidity = 800.0, 21.0, 88.0
					continue
				}
				s.slot.Store(snap)
			}
		}
	}()

	return nil
}
