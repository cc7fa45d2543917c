// Package config defines the configuration model for the chamber controller
// and the providers that load it.
package config

import "time"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSensorSources() ([]SensorSourceData, error)
	GetStorageConfig() (*StorageData, error)

	// Configuration management
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Control  ControlData        `json:"control" yaml:"control"`
	Sensors  []SensorSourceData `json:"sensors" yaml:"sensors"`
	Storage  StorageData        `json:"storage,omitempty" yaml:"storage,omitempty"`
	Hardware HardwareData       `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	HTTP     *HTTPData          `json:"http,omitempty" yaml:"http,omitempty"`
}

// ControlData holds the control-loop settings.
type ControlData struct {
	IntervalSeconds int    `json:"interval_seconds,omitempty" yaml:"interval_seconds,omitempty"`
	AuditLength     int    `json:"audit_length,omitempty" yaml:"audit_length,omitempty"`
	ThresholdsFile  string `json:"thresholds_file,omitempty" yaml:"thresholds_file,omitempty"`
}

// Interval returns the control-loop tick period, defaulting to 10s.
func (c ControlData) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// SensorSourceData holds configuration specific to one sensor feed.
type SensorSourceData struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Hostname     string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Port         string `json:"port,omitempty" yaml:"port,omitempty"`
	SerialDevice string `json:"serial_device,omitempty" yaml:"serial_device,omitempty"`
	Baud         int    `json:"baud,omitempty" yaml:"baud,omitempty"`
	BrokerURL    string `json:"broker_url,omitempty" yaml:"broker_url,omitempty"`
	Topic        string `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// StorageData holds the configuration for the persistence sinks.
type StorageData struct {
	SQLite *SQLiteData `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	MQTT   *MQTTData   `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// SQLiteData configures the local decision/actuator-event database.
type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

// MQTTData configures the telemetry publisher.
type MQTTData struct {
	BrokerURL   string `json:"broker_url" yaml:"broker_url"`
	ClientID    string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty" yaml:"topic_prefix,omitempty"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
}

// HardwareData selects the relay driver and pin assignments.
type HardwareData struct {
	Driver string            `json:"driver,omitempty" yaml:"driver,omitempty"`
	Pins   map[string]string `json:"pins,omitempty" yaml:"pins,omitempty"`
}

// HTTPData configures the command/status HTTP surface.
type HTTPData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}
