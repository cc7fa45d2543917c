// Package mqttpub publishes decisions and actuator transitions to an MQTT
// broker so dashboards and the backend sync service can follow the chamber.
package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/storage"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// Sink publishes audit events as retained JSON messages.
type Sink struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the broker named in the config. The connection retries in
// the background; publishes while disconnected are dropped by paho and that
// is acceptable for telemetry.
func New(cfg config.MQTTData) (*Sink, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "chamber-controller"
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "chamber"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	connected, err := waitConnect(client.Connect(), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("could not connect to MQTT broker %s: %w", cfg.BrokerURL, err)
	}
	if !connected {
		log.Warnf("MQTT broker %s not reachable yet, connecting in the background", cfg.BrokerURL)
	}

	return &Sink{client: client, topicPrefix: prefix}, nil
}

// waitConnect waits out the initial connect attempt. Not connected with a
// nil error means paho is still retrying in the background, which is
// acceptable for telemetry.
func waitConnect(token mqtt.Token, timeout time.Duration) (bool, error) {
	if !token.WaitTimeout(timeout) {
		return false, nil
	}
	if err := token.Error(); err != nil {
		return false, err
	}
	return true, nil
}

// StartSink launches the publisher goroutine and returns its event channel.
func (s *Sink) StartSink(ctx context.Context, wg *sync.WaitGroup) chan<- storage.Event {
	events := make(chan storage.Event, 20)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.client.Disconnect(250)

		for {
			select {
			case ev := <-events:
				s.publish(ev)
			case <-ctx.Done():
				log.Info("shutting down MQTT telemetry sink")
				return
			}
		}
	}()

	return events
}

func (s *Sink) publish(ev storage.Event) {
	var topic string
	var payload interface{}

	switch {
	case ev.Decision != nil:
		topic = s.topicPrefix + "/decisions"
		payload = ev.Decision
	case ev.Actuator != nil:
		topic = s.topicPrefix + "/actuators"
		payload = ev.Actuator
	default:
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("could not marshal telemetry for %s: %v", topic, err)
		return
	}

	token := s.client.Publish(topic, 0, true, raw)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Errorf("could not publish to %s: %v", topic, token.Error())
	}
}
