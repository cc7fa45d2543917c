// Package mqttsub subscribes to a broker topic carrying sensor bridge
// reports, for chambers whose sensor head publishes over WiFi instead of a
// wired serial link.
package mqttsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// Station consumes sensor reports from an MQTT topic.
type Station struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	config config.SensorSourceData
	slot   *sensors.LatestSlot
	logger *zap.SugaredLogger
	client mqtt.Client
}

// NewStation creates an MQTT-fed sensor source.
func NewStation(ctx context.Context, wg *sync.WaitGroup, cfg config.SensorSourceData, slot *sensors.LatestSlot, logger *zap.SugaredLogger) (*Station, error) {
	if cfg.BrokerURL == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt sensor source [%s] must define broker_url and topic", cfg.Name)
	}

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

// Start connects to the broker and subscribes to the report topic. Paho's
// auto-reconnect handles broker outages; a lost feed only means the slot
// goes stale, which the control loop tolerates.
func (s *Station) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.config.BrokerURL).
		SetClientID(fmt.Sprintf("chamber-sensor-%s", s.config.Name)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return fmt.Errorf("could not connect to MQTT broker %s: %v", s.config.BrokerURL, token.Error())
	}

	if token := s.client.Subscribe(s.config.Topic, 0, s.handleReport); token.Wait() && token.Error() != nil {
		return fmt.Errorf("could not subscribe to %s: %w", s.config.Topic, token.Error())
	}
	s.logger.Infof("mqtt sensor source [%s] subscribed to %s", s.config.Name, s.config.Topic)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		s.client.Disconnect(250)
		s.logger.Infof("mqtt sensor source [%s] disconnected", s.config.Name)
	}()

	return nil
}

func (s *Station) handleReport(_ mqtt.Client, msg mqtt.Message) {
	var report sensors.Report
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		s.logger.Warnf("dropping malformed sensor report on %s: %v", msg.Topic(), err)
		s.slot.CountDropped()
		return
	}

	snap, err := report.Snapshot(time.Now())
	if err != nil {
		s.logger.Warnf("dropping sensor report: %v", err)
		s.slot.CountDropped()
		return
	}
	if err := sensors.Plausible(snap); err != nil {
		s.logger.Warnf("dropping sensor report: %v", err)
		s.slot.CountDropped()
		return
	}

	s.slot.Store(snap)
}
