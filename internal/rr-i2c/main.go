package i2c

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/TheCacophonyProject/redreactor-controller/i2crequest"
	"github.com/alexflint/go-arg"
)

const txTimeoutMs = 1000

var version = "<not set>"
var log = logging.NewLogger("info")

type Args struct {
	Write   *Write      `arg:"subcommand:write"   help:"Write a 16 bit register."`
	Read    *Read       `arg:"subcommand:read"    help:"Read a 16 bit register."`
	Service *subcommand `arg:"subcommand:service" help:"Start the dbus service."`
	Find    *Find       `arg:"subcommand:find"    help:"Find i2c devices."`
	logging.LogArgs
}

type subcommand struct {
}

type Find struct {
	Address string `arg:"required" help:"The address of the device you want to find, in hex (0xnn)"`
}

type Write struct {
	Address string `arg:"required" help:"The address you want to write to, in hex (0xnn)"`
	Reg     string `arg:"required" help:"The register you want to write to, in hex (0xnn)"`
	Val     string `arg:"required" help:"The value you want to write, in hex (0xnnnn)"`
}

type Read struct {
	Address string `arg:"required" help:"The address you want to read from, in hex (0xnn)"`
	Reg     string `arg:"required" help:"The register you want to read from, in hex (0xnn)"`
}

var defaultArgs = Args{}

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

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}
	log = logging.NewLogger(args.LogLevel)

	log.Infof("Running version: %s", version)

	switch {
	case args.Write != nil:
		return write(args.Write)
	case args.Read != nil:
		return read(args.Read)
	case args.Find != nil:
		return find(args.Find)
	case args.Service != nil:
		if err := startService(); err != nil {
			return err
		}
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		log.Infof("Stopping I2C service on %s", <-sigs)
	}
	return nil
}

func find(find *Find) error {
	address, err := hexStringToByte(find.Address)
	if err != nil {
		return err
	}

	log.Printf("Finding address 0x%X", address)
	found, err := i2crequest.CheckAddress(address, txTimeoutMs)
	if err != nil {
		log.Errorf("Error checking for device: %v", err)
	}
	if found {
		log.Printf("Found device at address 0x%X", address)
	} else {
		log.Printf("Did not find device at address 0x%X", address)
	}
	return nil
}

func read(read *Read) error {
	reg, err := hexStringToByte(read.Reg)
	if err != nil {
		return err
	}
	address, err := hexStringToByte(read.Address)
	if err != nil {
		return err
	}

	val, err := readRegister(address, reg)
	if err != nil {
		return err
	}
	log.Printf("Register 0x%02X = 0x%04X (%d)", reg, val, int16(val))
	return nil
}

func write(args *Write) error {
	reg, err := hexStringToByte(args.Reg)
	if err != nil {
		return err
	}
	val, err := hexStringToUint16(args.Val)
	if err != nil {
		return err
	}
	address, err := hexStringToByte(args.Address)
	if err != nil {
		return err
	}

	log.Printf("Writing 0x%04X to register 0x%02X", val, reg)
	return writeRegister(address, reg, val)
}

func readRegister(address, reg byte) (uint16, error) {
	response, err := i2crequest.Tx(address, []byte{reg}, 2, txTimeoutMs)
	if err != nil {
		return 0, err
	}
	if len(response) != 2 {
		return 0, fmt.Errorf("expected 2 bytes from register 0x%02X, got %d", reg, len(response))
	}
	return binary.BigEndian.Uint16(response), nil
}

func writeRegister(address, reg byte, val uint16) error {
	w := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(w[1:], val)
	_, err := i2crequest.Tx(address, w, 0, txTimeoutMs)
	return err
}

func hexStringToByte(hexStr string) (byte, error) {
	if len(hexStr) != 4 {
		return 0, fmt.Errorf("invalid hex string length: %d", len(hexStr))
	}
	if !strings.HasPrefix(hexStr, "0x") {
		return 0, fmt.Errorf("invalid hex string prefix, should be '0x': %s", hexStr)
	}
	val, err := strconv.ParseUint(hexStr[2:], 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(val), nil
}

func hexStringToUint16(hexStr string) (uint16, error) {
	if !strings.HasPrefix(hexStr, "0x") || len(hexStr) < 3 || len(hexStr) > 6 {
		return 0, fmt.Errorf("invalid 16 bit hex string: %s", hexStr)
	}
	val, err := strconv.ParseUint(hexStr[2:], 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(val), nil
}
