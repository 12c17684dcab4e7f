/*
redreactor-controller - Battery monitoring for the RedReactor power HAT
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package battery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/TheCacophonyProject/redreactor-controller/ina219"
	arg "github.com/alexflint/go-arg"
	"github.com/prometheus/client_golang/prometheus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	i2cBackendLocal = "direct"
	i2cBackendDBus  = "dbus"
	i2cTimeoutMs    = 1000
)

var version = "No version provided"

var log = logging.NewLogger("info")

type Args struct {
	ConfigDir          string        `arg:"-c,--config" help:"path to configuration directory"`
	Device             string        `arg:"--device" help:"character device of the RedReactor driver"`
	I2CBackend         string        `arg:"--i2c-backend" help:"how to reach the INA219: direct or dbus"`
	I2CAddress         uint16        `arg:"--i2c-address" help:"address of the INA219 in decimal (64 is 0x40)"`
	BatterySize        int           `arg:"--battery-size" help:"battery capacity in mAh"`
	VMin               float64       `arg:"--vmin" help:"voltage of an empty battery"`
	VMax               float64       `arg:"--vmax" help:"design voltage of a full battery"`
	Interval           time.Duration `arg:"--interval" help:"time between sensor reads"`
	StateFile          string        `arg:"--state-file" help:"where the learnt calibration is kept, empty to disable"`
	ReadingsFile       string        `arg:"--readings-file" help:"CSV log of reported readings, empty to disable"`
	MQTTBroker         string        `arg:"--mqtt-broker" help:"MQTT broker to publish to, e.g. tcp://localhost:1883"`
	MetricsAddress     string        `arg:"--metrics-address" help:"address to serve Prometheus metrics on, e.g. :9101"`
	NoDBus             bool          `arg:"--no-dbus" help:"don't start the dbus service"`
	SkipSystemShutdown bool          `arg:"--skip-system-shutdown" help:"don't power off when the battery is empty"`
	logging.LogArgs
}

var defaultArgs = Args{
	ConfigDir:    goconfig.DefaultConfigDir,
	Device:       DefaultDevicePath,
	I2CBackend:   i2cBackendLocal,
	I2CAddress:   ina219.DefaultAddress,
	BatterySize:  DefaultConfig().BatterySizemAh,
	VMin:         DefaultConfig().VMin,
	VMax:         DefaultConfig().VMax,
	Interval:     DefaultConfig().Interval,
	StateFile:    DefaultStateFile,
	ReadingsFile: DefaultReadingsFile,
}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func (a Args) config() Config {
	cfg := DefaultConfig()
	cfg.BatterySizemAh = a.BatterySize
	cfg.VMin = a.VMin
	cfg.VMax = a.VMax
	cfg.Interval = a.Interval
	return cfg
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}
	log = logging.NewLogger(args.LogLevel)
	log.Infof("Running version: %s", version)

	cfg := args.config()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := checkBatteryConfig(args.ConfigDir); err != nil {
		return err
	}

	sensor, err := openSensor(args.I2CBackend, args.I2CAddress, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise INA219: %w", err)
	}

	shutdown := powerOff
	if args.SkipSystemShutdown {
		shutdown = skipPowerOff
	}
	monitor := NewMonitor(cfg, sensor, DeviceFile{Path: args.Device}, shutdown)

	if args.StateFile != "" {
		chargeVmax, idleFullVmax, ok, err := loadCalibration(args.StateFile, cfg)
		if err != nil {
			log.Errorf("Failed to load calibration from '%s': %v", args.StateFile, err)
		} else if ok {
			log.Infof("Restored calibration, charge Vmax %.3fV, idle full Vmax %.3fV", chargeVmax, idleFullVmax)
			monitor.RestoreCalibration(chargeVmax, idleFullVmax)
		}
		monitor.OnChargeCycle(func(cal Calibration) {
			if err := saveCalibration(args.StateFile, cal); err != nil {
				log.Errorf("Failed to save calibration: %v", err)
			}
		})
	}

	if args.ReadingsFile != "" {
		monitor.AddPublisher(NewReadingsLog(args.ReadingsFile))
	}

	if args.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		metrics, err := NewMetrics(reg)
		if err != nil {
			return err
		}
		monitor.AddPublisher(metrics)
		srv := serveMetrics(args.MetricsAddress, reg)
		defer srv.Close()
	}

	if !args.NoDBus {
		p, err := startService()
		if err != nil {
			log.Errorf("Failed to start dbus service: %v", err)
		} else {
			monitor.AddPublisher(p)
		}
	}

	if args.MQTTBroker != "" {
		host, err := os.Hostname()
		if err != nil {
			return err
		}
		p, err := NewMQTTPublisher(args.MQTTBroker, host)
		if err != nil {
			log.Errorf("MQTT disabled: %v", err)
		} else {
			monitor.AddPublisher(p)
			defer p.Close()
		}
	}

	ctx, stop := signalContext()
	defer stop()
	return monitor.Run(ctx)
}

func openSensor(backend string, address uint16, cfg Config) (*ina219.Device, error) {
	var dev *ina219.Device
	switch backend {
	case i2cBackendLocal:
		log.Debug("Initializing host")
		if _, err := host.Init(); err != nil {
			return nil, err
		}
		bus, err := i2creg.Open("")
		if err != nil {
			return nil, err
		}
		dev = ina219.Open(bus, address, cfg.ShuntOhms, cfg.MaxExpectedAmps)
	case i2cBackendDBus:
		conn := &ina219.DBusConn{Address: byte(address), TimeoutMs: i2cTimeoutMs}
		dev = ina219.New(conn, cfg.ShuntOhms, cfg.MaxExpectedAmps)
	default:
		return nil, fmt.Errorf("unknown i2c backend '%s'", backend)
	}
	err := dev.Configure(ina219.Range16V, ina219.Gain8_320mV, ina219.ADC12Bit, ina219.ADC12Bit)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. A second signal exits straight away.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("Received %s, stopping", sig)
		cancel()
		sig = <-sigs
		log.Infof("Received %s again, exiting", sig)
		os.Exit(1)
	}()
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}
