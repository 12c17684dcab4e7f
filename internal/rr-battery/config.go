package battery

import (
	"fmt"
	"time"

	goconfig "github.com/TheCacophonyProject/go-config"
)

const (
	DefaultDevicePath   = "/dev/redreactor"
	DefaultStateFile    = "/etc/cacophony/redreactor-calibration.json"
	DefaultReadingsFile = "/var/log/redreactor-readings.csv"
)

// Config holds the constants of the monitoring loop. They are fixed once the
// monitor has started.
type Config struct {
	Interval        time.Duration
	Samples         int
	ReportEvery     int
	ShuntOhms       float64
	MaxExpectedAmps float64
	VMax            float64
	VMin            float64
	COvr            float64
	BatterySizemAh  int
	MaxReadFailures int
}

func DefaultConfig() Config {
	return Config{
		Interval:        1000 * time.Millisecond,
		Samples:         10,
		ReportEvery:     5,
		ShuntOhms:       0.05,
		MaxExpectedAmps: 6.4,
		VMax:            4.2,
		VMin:            2.9,
		COvr:            0.025,
		BatterySizemAh:  6000,
		MaxReadFailures: 10,
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Samples < 1 {
		return fmt.Errorf("samples must be at least 1, got %d", c.Samples)
	}
	if c.ReportEvery < 1 {
		return fmt.Errorf("report interval must be at least 1, got %d", c.ReportEvery)
	}
	if c.VMin <= 0 || c.VMin+c.COvr >= c.VMax {
		return fmt.Errorf("invalid battery voltage range %.3fV-%.3fV", c.VMin, c.VMax)
	}
	if c.BatterySizemAh <= 0 {
		return fmt.Errorf("battery size must be positive, got %dmAh", c.BatterySizemAh)
	}
	if c.MaxReadFailures < 1 {
		return fmt.Errorf("max read failures must be at least 1, got %d", c.MaxReadFailures)
	}
	return nil
}

// checkBatteryConfig reads the battery section of the device config. Readings
// can be turned off there, in which case the monitor should not run.
func checkBatteryConfig(configDir string) error {
	conf, err := goconfig.New(configDir)
	if err != nil {
		log.Infof("Could not load config from '%s', using defaults: %v", configDir, err)
		return nil
	}
	batteryConfig := goconfig.DefaultBattery()
	if err := conf.Unmarshal(goconfig.BatteryKey, &batteryConfig); err != nil {
		return fmt.Errorf("failed to load battery config: %w", err)
	}
	if !batteryConfig.EnableVoltageReadings {
		return fmt.Errorf("battery voltage readings disabled")
	}
	return nil
}
