// Package config provides the process options shared by the commands.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/serial"
)

// AppID keys the protected machine ID.
const AppID = "pupsensor"

// Config provides common options to run the emulator.
type Config struct {
	// ID names the emulator instance in MQTT topics.
	ID string

	Serial serial.Config

	// MQTTBrokerURL specifies the MQTT broker to use, empty to disable.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// HTTPAddr is the listen address of the HTTP API, empty to disable.
	HTTPAddr string
	// Profile is the path of a YAML device profile.
	Profile string
}

var defaultConfig = Config{
	Serial:   *serial.DefaultConfig(""),
	HTTPAddr: ":8080",
}

func init() {
	defaultConfig.ID = MachineID()
	applyEnv(&defaultConfig, os.LookupEnv)
}

// MachineID returns a short protected ID of this machine, or AppID if the
// machine ID is unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil || id == "" {
		return AppID
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func applyEnv(c *Config, lookup func(string) (string, bool)) {
	str := func(name string, val *string) {
		if v, ok := lookup(name); ok && v != "" {
			*val = v
		}
	}
	str("PUPSENSOR_ID", &c.ID)
	str("PUPSENSOR_SERIAL", &c.Serial.Device)
	str("PUPSENSOR_BACKEND", &c.Serial.Driver)
	str("PUPSENSOR_RX_STATUS", &c.Serial.RxStatus)
	str("PUPSENSOR_MQTT_URL", &c.MQTTBrokerURL)
	str("PUPSENSOR_HTTP", &c.HTTPAddr)
	str("PUPSENSOR_PROFILE", &c.Profile)
	if v, ok := lookup("PUPSENSOR_BREAK_TX"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Serial.BreakTx = b
		}
	}
	if v, ok := lookup("PUPSENSOR_READ_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Serial.ReadTimeout = d
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagsOn(flag.CommandLine, &defaultConfig)
}

// SetupFlagsOn binds options of c to fs.
func SetupFlagsOn(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.ID, "id", c.ID, "Emulator instance ID")
	fs.StringVar(&c.Serial.Device, "serial", c.Serial.Device, "Serial device, e.g. /dev/ttyUSB0")
	fs.StringVar(&c.Serial.Driver, "backend", c.Serial.Driver, "Serial backend: bugst or tarm")
	fs.DurationVar(&c.Serial.ReadTimeout, "read-timeout", c.Serial.ReadTimeout, "Serial read timeout")
	fs.BoolVar(&c.Serial.BreakTx, "break-tx", c.Serial.BreakTx, "Pull tx low with a line break on reset")
	fs.StringVar(&c.Serial.RxStatus, "rx-status", c.Serial.RxStatus, "Modem status line wired to rx: cts, dsr or dcd")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP API listen address")
	fs.StringVar(&c.Profile, "profile", c.Profile, "YAML device profile")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the options. serialRequired is false when no serial
// port is opened, like a simulated hub.
func (c *Config) Validate(serialRequired bool) error {
	if c.ID == "" {
		return fmt.Errorf("instance id must be specified")
	}
	if strings.ContainsAny(c.ID, "/+#") {
		return fmt.Errorf("instance id %q must not contain /, + or #", c.ID)
	}
	if !serialRequired {
		return nil
	}
	if c.Serial.Device == "" {
		return fmt.Errorf("serial device must be specified")
	}
	switch strings.ToLower(c.Serial.Driver) {
	case "", serial.DriverBugst, serial.DriverTarm:
	default:
		return fmt.Errorf("unknown serial backend %q", c.Serial.Driver)
	}
	switch strings.ToLower(c.Serial.RxStatus) {
	case "", "cts", "dsr", "dcd":
	default:
		return fmt.Errorf("unknown rx status line %q", c.Serial.RxStatus)
	}
	return nil
}

// LoadDevice creates the device, configured by the profile if specified.
func (c *Config) LoadDevice() (*device.Device, error) {
	dev := device.New()
	if c.Profile == "" {
		return dev, nil
	}
	profile, err := device.LoadProfile(c.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", c.Profile, err)
	}
	if err := profile.Apply(dev); err != nil {
		return nil, fmt.Errorf("apply profile %s: %w", c.Profile, err)
	}
	return dev, nil
}
