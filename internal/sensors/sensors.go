// Package sensors defines the sensor-source abstraction and the latest-value
// slot that feeds the control loop. Sources run on their own cadence and
// must never be able to block the loop: new readings overwrite the slot, and
// the loop only ever reads the most recent one.
package sensors

import (
	"fmt"
	"sync"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// Source is a feed of validated sensor snapshots. Implementations publish
// to a LatestSlot and run until their context is cancelled.
type Source interface {
	Start() error
	Name() string
}

// LatestSlot is a single-slot mailbox for sensor snapshots. Writers
// overwrite, readers never block, and history is never queued.
type LatestSlot struct {
	mu      sync.RWMutex
	snap    types.SensorSnapshot
	present bool
	stores  uint64
	dropped uint64
}

// NewLatestSlot returns an empty slot.
func NewLatestSlot() *LatestSlot {
	return &LatestSlot{}
}

// Store replaces the slot's contents with a newer snapshot.
func (s *LatestSlot) Store(snap types.SensorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.present = true
	s.stores++
}

// Latest returns the most recent snapshot, or false if nothing has arrived
// yet. The snapshot may be stale; that is acceptable for a slow physical
// process.
func (s *LatestSlot) Latest() (types.SensorSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.present
}

// CountDropped records one reading rejected by plausibility validation.
func (s *LatestSlot) CountDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
}

// Stats reports how many readings were stored and how many were dropped as
// implausible.
func (s *LatestSlot) Stats() (stored, dropped uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stores, s.dropped
}

// Physically plausible bounds for a sealed grow chamber. Readings outside
// these are dropped and the last-known value retained.
const (
	MinCO2PPM      = 0
	MaxCO2PPM      = 100000
	MinTemperature = -10.0
	MaxTemperature = 60.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// Plausible rejects readings outside physically sensible bounds.
func Plausible(snap types.SensorSnapshot) error {
	if snap.CO2 < MinCO2PPM || snap.CO2 > MaxCO2PPM {
		return fmt.Errorf("implausible CO2 reading %d ppm", snap.CO2)
	}
	if snap.Temperature < MinTemperature || snap.Temperature > MaxTemperature {
		return fmt.Errorf("implausible temperature reading %.1f°C", snap.Temperature)
	}
	if snap.Humidity < MinHumidity || snap.Humidity > MaxHumidity {
		return fmt.Errorf("implausible humidity reading %.1f%%", snap.Humidity)
	}
	return nil
}
