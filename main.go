package main

import (
	"fmt"
	"jobstreak/internal/di"
	"jobstreak/internal/structures"
	"os"

	flag "github.com/spf13/pflag"
)

func main() {
	var flags structures.CliFlags
	flag.StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the configuration file")
	flag.BoolVarP(&flags.DebugMode, "debug", "d", false, "also log to the console")
	flag.Parse()

	if _, err := di.InitApp(&flags); err != nil {
		fmt.Fprintf(os.Stderr, "jobstreak: %s\n", err)
		os.Exit(1)
	}
}
