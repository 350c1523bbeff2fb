// Command inform-server serves stored inform runs over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/inform/internal/app"
	"github.com/chrissnell/inform/internal/constants"
	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to YAML configuration")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("inform-server %s\n", constants.Version)
		os.Exit(0)
	}

	if err := run(*cfgFile, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "inform-server: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgFile string, debug bool) error {
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	filename, _ := filepath.Abs(cfgFile)
	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	if err := log.InitWithOptions(cfg.LogOptions(debug)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		return err
	}
	return nil
}
