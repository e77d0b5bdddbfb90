package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Wake   WakeConfig   `yaml:"wake"`
	Modem  ModemConfig  `yaml:"modem"`
	Track  TrackConfig  `yaml:"track"`
	SMS    SMSConfig    `yaml:"sms"`
	HTTP   HTTPConfig   `yaml:"http"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

type SerialConfig struct {
	Port             string        `yaml:"port"`
	Baud             int           `yaml:"baud"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	ResponseTimeout  time.Duration `yaml:"response_timeout"`
	InactivityWindow time.Duration `yaml:"inactivity_window"`
}

type WakeConfig struct {
	Chip       string        `yaml:"chip"`
	Pin        int           `yaml:"pin"`
	Settle     time.Duration `yaml:"settle"`
	Pulse      time.Duration `yaml:"pulse"`
	BootSettle time.Duration `yaml:"boot_settle"`
}

type ModemConfig struct {
	ProbeMax     int           `yaml:"probe_max"`
	ProbeDelay   time.Duration `yaml:"probe_delay"`
	Cooldown     time.Duration `yaml:"cooldown"`
	RepulseEvery int           `yaml:"repulse_every"`
}

type TrackConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	DeviceID     string        `yaml:"device_id"`
	DistanceMinM float64       `yaml:"distance_min_m"`
	MaxSpeedKmh  float64       `yaml:"max_speed_kmh"`
}

type SMSConfig struct {
	Enable        bool          `yaml:"enable"`
	Recipient     string        `yaml:"recipient"`
	PeriodicEvery int           `yaml:"periodic_every"`
	PromptSettle  time.Duration `yaml:"prompt_settle"`
	ResultWait    time.Duration `yaml:"result_wait"`
}

type HTTPConfig struct {
	Enable       bool          `yaml:"enable"`
	URL          string        `yaml:"url"`
	PostInterval time.Duration `yaml:"post_interval"`
	APN          string        `yaml:"apn"`
	ManualAPN    bool          `yaml:"manual_apn"`
	PromptWait   time.Duration `yaml:"prompt_wait"`
	AckWait      time.Duration `yaml:"ack_wait"`
	ActionWait   time.Duration `yaml:"action_wait"`
}

type MQTTConfig struct {
	Enable bool   `yaml:"enable"`
	Broker string `yaml:"broker"`
}

// Default is the bench configuration: modem on the usual USB tty, no
// notification features until the operator turns them on.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	if cfg.SMS.Enable && cfg.SMS.Recipient == "" {
		return Config{}, fmt.Errorf("sms.recipient is required when sms.enable is true")
	}
	if cfg.HTTP.Enable && cfg.HTTP.URL == "" {
		return Config{}, fmt.Errorf("http.url is required when http.enable is true")
	}
	if cfg.HTTP.ManualAPN && cfg.HTTP.APN == "" {
		return Config{}, fmt.Errorf("http.apn is required when http.manual_apn is true")
	}
	if cfg.MQTT.Enable && cfg.MQTT.Broker == "" {
		return Config{}, fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Serial.Port == "" {
		cfg.Serial.Port = "/dev/ttyMODEM"
	}
	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.ReadTimeout <= 0 {
		cfg.Serial.ReadTimeout = 50 * time.Millisecond
	}
	if cfg.Serial.ResponseTimeout <= 0 {
		cfg.Serial.ResponseTimeout = 2 * time.Second
	}
	if cfg.Serial.InactivityWindow <= 0 {
		cfg.Serial.InactivityWindow = 100 * time.Millisecond
	}

	if cfg.Wake.Chip == "" {
		cfg.Wake.Chip = "/dev/gpiochip0"
	}
	if cfg.Wake.Settle <= 0 {
		cfg.Wake.Settle = 100 * time.Millisecond
	}
	if cfg.Wake.Pulse <= 0 {
		cfg.Wake.Pulse = 1500 * time.Millisecond
	}
	if cfg.Wake.BootSettle <= 0 {
		cfg.Wake.BootSettle = 5 * time.Second
	}

	if cfg.Modem.ProbeMax <= 0 {
		cfg.Modem.ProbeMax = 10
	}
	if cfg.Modem.ProbeDelay <= 0 {
		cfg.Modem.ProbeDelay = 2 * time.Second
	}
	if cfg.Modem.Cooldown <= 0 {
		cfg.Modem.Cooldown = 1 * time.Minute
	}

	if cfg.Track.PollInterval <= 0 {
		cfg.Track.PollInterval = 10 * time.Second
	}
	if cfg.Track.DeviceID == "" {
		cfg.Track.DeviceID = "go-tracker"
	}

	if cfg.SMS.PeriodicEvery <= 0 {
		cfg.SMS.PeriodicEvery = 10
	}
	if cfg.SMS.PromptSettle <= 0 {
		cfg.SMS.PromptSettle = 1 * time.Second
	}
	if cfg.SMS.ResultWait <= 0 {
		cfg.SMS.ResultWait = 10 * time.Second
	}

	if cfg.HTTP.PostInterval <= 0 {
		cfg.HTTP.PostInterval = 5 * time.Minute
	}
	if cfg.HTTP.PromptWait <= 0 {
		cfg.HTTP.PromptWait = 5 * time.Second
	}
	if cfg.HTTP.AckWait <= 0 {
		cfg.HTTP.AckWait = 2 * time.Second
	}
	if cfg.HTTP.ActionWait <= 0 {
		cfg.HTTP.ActionWait = 30 * time.Second
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://127.0.0.1:1883"
	}
}
