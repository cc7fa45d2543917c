package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// fakeProvider serves a fixed config and can be told to fail the storage
// section.
type fakeProvider struct {
	cfg        *config.ConfigData
	storageErr error
}

func (p *fakeProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, nil }

func (p *fakeProvider) GetSensorSources() ([]config.SensorSourceData, error) {
	return p.cfg.Sensors, nil
}

func (p *fakeProvider) GetStorageConfig() (*config.StorageData, error) {
	if p.storageErr != nil {
		return nil, p.storageErr
	}
	return &p.cfg.Storage, nil
}

func (p *fakeProvider) IsReadOnly() bool { return true }
func (p *fakeProvider) Close() error     { return nil }

func TestRunSurfacesSinkStartupFailure(t *testing.T) {
	provider := &fakeProvider{
		cfg:        &config.ConfigData{Hardware: config.HardwareData{Driver: "sim"}},
		storageErr: errors.New("storage config unavailable"),
	}

	err := New(provider, zap.NewNop().Sugar()).Run(context.Background())
	if err == nil {
		t.Fatal("expected a sink construction failure to abort startup")
	}
	if !strings.Contains(err.Error(), "storage config unavailable") {
		t.Errorf("error %q does not carry the cause", err)
	}
}

func TestRunSurfacesSensorStartupFailure(t *testing.T) {
	provider := &fakeProvider{
		cfg: &config.ConfigData{
			Hardware: config.HardwareData{Driver: "sim"},
			Sensors: []config.SensorSourceData{
				{Name: "bogus", Type: "carrier-pigeon", Enabled: true},
			},
		},
	}

	err := New(provider, zap.NewNop().Sugar()).Run(context.Background())
	if err == nil {
		t.Fatal("expected an unknown sensor type to abort startup")
	}
	if !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Errorf("error %q does not name the bad source type", err)
	}
}

func TestNewRelayBankDriverSelection(t *testing.T) {
	_, err := newRelayBank(config.HardwareData{
		Driver: "sim",
		Pins:   map[string]string{"misting_nozzle": "11"},
	})
	// The sim driver ignores pins, so validation only applies to the gobot
	// path; an unknown driver is the reliable error here.
	if err != nil {
		t.Fatalf("sim driver should ignore the pin map, got %v", err)
	}

	if _, err := newRelayBank(config.HardwareData{Driver: "hydraulic"}); err == nil {
		t.Error("expected an error for an unknown relay driver")
	}
}
