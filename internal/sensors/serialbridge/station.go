// Package serialbridge reads sensor reports from the chamber's sensor
// bridge, a microcontroller that emits one JSON object per line over a
// serial port or a TCP socket.
package serialbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	serial "github.com/tarm/goserial"
	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// Station polls the sensor bridge and publishes validated snapshots to the
// latest-value slot.
type Station struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	config       config.SensorSourceData
	slot         *sensors.LatestSlot
	logger       *zap.SugaredLogger
	netConn      net.Conn
	rwc          io.ReadWriteCloser
	connecting   bool
	connectingMu sync.Mutex
}

// NewStation creates a serial/TCP bridge station. The device config must
// name either a serial device or a hostname+port.
func NewStation(ctx context.Context, wg *sync.WaitGroup, cfg config.SensorSourceData, slot *sensors.LatestSlot, logger *zap.SugaredLogger) (*Station, error) {
	if cfg.SerialDevice == "" && (cfg.Hostname == "" || cfg.Port == "") {
		return nil, fmt.Errorf("sensor bridge [%s] must define either a serial device or hostname+port", cfg.Name)
	}

	if cfg.Baud == 0 {
		cfg.Baud = 115200
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

// Start connects to the bridge and launches the report-reading goroutine.
func (s *Station) Start() error {
	s.logger.Infof("starting sensor bridge [%v]...", s.config.Name)
	s.connect()

	s.wg.Add(1)
	go s.readReports()

	return nil
}

// readReports runs the report scanner, reconnecting whenever it errors out.
func (s *Station) readReports() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("cancellation request received, stopping sensor bridge reader")
			return
		default:
			err := s.scanReports()
			if err != nil {
				s.logger.Error(err)
				if s.rwc != nil {
					s.rwc.Close()
				}
				s.logger.Info("attempting to reconnect to sensor bridge...")
				s.connect()
			} else {
				return
			}
		}
	}
}

// scanReports parses JSON report lines from the bridge, validates them and
// stores them in the latest-value slot. Implausible readings are dropped and
// counted; the last-known value stays in the slot.
func (s *Station) scanReports() error {
	scanner := bufio.NewScanner(s.rwc)

	for scanner.Scan() {
		if s.netConn != nil {
			s.netConn.SetReadDeadline(time.Now().Add(time.Second * 30))
		}
		select {
		case <-s.ctx.Done():
			s.logger.Info("cancellation request received, stopping report scanner")
			return nil
		default:
			var report sensors.Report
			if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
				return fmt.Errorf("error unmarshalling sensor report: %v", err)
			}

			snap, err := report.Snapshot(time.Now())
			if err != nil {
				s.logger.Warnf("dropping sensor report: %v", err)
				s.slot.CountDropped()
				continue
			}
			if err := sensors.Plausible(snap); err != nil {
				s.logger.Warnf("dropping sensor report: %v", err)
				s.slot.CountDropped()
				continue
			}

			s.logger.Debugf("sensor bridge [%s] reading: co2=%d ppm, temp=%.1f°C, humidity=%.1f%%, phase=%s",
				s.config.Name, snap.CO2, snap.Temperature, snap.Humidity, snap.Phase)
			s.slot.Store(snap)
		}
	}

	return fmt.Errorf("report scanning aborted due to error or EOF")
}

// connect opens the serial port or TCP socket named in the config.
func (s *Station) connect() {
	if s.config.SerialDevice != "" {
		s.connectSerial()
		return
	}
	s.connectNetwork()
}

func (s *Station) connectSerial() {
	s.connectingMu.Lock()
	if s.connecting {
		s.connectingMu.Unlock()
		s.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}
	s.connecting = true
	s.connectingMu.Unlock()

	defer func() {
		s.connectingMu.Lock()
		s.connecting = false
		s.connectingMu.Unlock()
	}()

	s.logger.Infof("connecting to %v ...", s.config.SerialDevice)

	for {
		sc := &serial.Config{Name: s.config.SerialDevice, Baud: s.config.Baud}
		rwc, err := serial.OpenPort(sc)
		if err == nil {
			s.rwc = rwc
			return
		}

		s.logger.Errorf("failed to open serial port %s: %v", s.config.SerialDevice, err)
		s.logger.Error("sleeping 30 seconds and trying again")

		select {
		case <-s.ctx.Done():
			s.logger.Info("cancellation request received during retry wait")
			return
		case <-time.After(30 * time.Second):
		}
	}
}

func (s *Station) connectNetwork() {
	s.connectingMu.Lock()
	if s.connecting {
		s.connectingMu.Unlock()
		s.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}
	s.connecting = true
	s.connectingMu.Unlock()

	defer func() {
		s.connectingMu.Lock()
		s.connecting = false
		s.connectingMu.Unlock()
	}()

	bridge := fmt.Sprint(s.config.Hostname, ":", s.config.Port)
	s.logger.Info("connecting to: ", bridge)

	for {
		conn, err := net.DialTimeout("tcp", bridge, 10*time.Second)
		if err == nil {
			conn.SetReadDeadline(time.Now().Add(time.Second * 30))
			s.netConn = conn
			s.rwc = io.ReadWriteCloser(conn)
			return
		}

		s.logger.Errorf("could not connect to %v: %v", bridge, err)
		s.logger.Error("sleeping 5 seconds and trying again")

		select {
		case <-s.ctx.Done():
			s.logger.Info("cancellation request received during retry wait")
			return
		case <-time.After(5 * time.Second):
		}
	}
}
