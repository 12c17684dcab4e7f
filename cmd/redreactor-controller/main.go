package main

import (
	"fmt"
	"os"

	"github.com/TheCacophonyProject/go-utils/logging"
	battery "github.com/TheCacophonyProject/redreactor-controller/internal/rr-battery"
	i2c "github.com/TheCacophonyProject/redreactor-controller/internal/rr-i2c"
	status "github.com/TheCacophonyProject/redreactor-controller/internal/rr-status"
)

var log *logging.Logger

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

var version = "<not set>"

func runMain() error {
	log = logging.NewLogger("info")
	if len(os.Args) < 2 {
		log.Info("Usage: redreactor-controller <battery|i2c|status> [args]")
		return fmt.Errorf("no subcommand given")
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "battery":
		err = battery.Run(args, version)
	case "i2c":
		err = i2c.Run(args, version)
	case "status":
		err = status.Run(args, version)
	default:
		err = fmt.Errorf("unknown subcommand: %s", subcommand)
	}

	return err
}
