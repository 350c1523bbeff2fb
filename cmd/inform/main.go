// Command inform classifies a research flight into regimes, extracts its
// segments, attaches reference data and grids it onto a model grid.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chrissnell/inform/internal/app"
	"github.com/chrissnell/inform/internal/constants"
	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/pkg/config"
)

// fileList collects a flag given several times or as a comma-separated
// list.
type fileList []string

func (f *fileList) String() string {
	return strings.Join(*f, ",")
}

func (f *fileList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*f = append(*f, p)
		}
	}
	return nil
}

func main() {
	var in app.Inputs
	var echo, sondes, regimes fileList

	cfgFile := flag.String("config", "", "Path to YAML configuration (optional)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.StringVar(&in.Flight, "flight", "", "Aircraft observations (netCDF, or CSV ending in .csv)")
	flag.StringVar(&in.Model, "model", "", "Model history file with the hybrid grid")
	flag.StringVar(&in.Reference, "reference", "", "File supplying comparison times (defaults to the model times)")
	flag.Var(&echo, "echo", "Radar echo-type file; repeat or comma-separate for several")
	flag.StringVar(&in.Reanalysis, "reanalysis", "", "Gridded reanalysis to sample along the flight")
	flag.StringVar(&in.SizeDist, "sizedist", "", "Aircraft file with probe size distributions")
	flag.Var(&sondes, "sonde", "Dropsonde .cls file or directory of them; repeat or comma-separate for several")
	flag.Var(&regimes, "regimes", "Segment file from an earlier run whose cloud regimes are joined; repeatable")
	flag.StringVar(&in.Output, "out", "", "Path of the gridded netCDF product")
	flag.StringVar(&in.Segments, "segments", "", "Path of the netCDF file receiving the extracted segments")
	flag.Parse()

	if *showVersion {
		fmt.Printf("inform %s\n", constants.Version)
		os.Exit(0)
	}
	in.Echo = echo
	in.Sondes = sondes
	in.Regimes = regimes

	if err := run(*cfgFile, *debug, in); err != nil {
		fmt.Fprintf(os.Stderr, "inform: %v\n", err)
		if errors.Is(err, errNoFlight) {
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errNoFlight = errors.New("no flight file given; pass -flight")

// run does the work of main so that deferred cleanup happens before the
// process exits.
func run(cfgFile string, debug bool, in app.Inputs) error {
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := log.InitWithOptions(cfg.LogOptions(debug)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	if in.Flight == "" {
		return errNoFlight
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, backend, err := app.OpenStore(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	if store != nil {
		defer store.Close()
		log.Infof("storing results in %s", backend)
	}

	p := app.NewPipeline(cfg, store, log.Named("pipeline"))
	if _, err := p.Run(ctx, in); err != nil {
		log.Errorf("Run failed: %v", err)
		return err
	}
	return nil
}

// loadConfig reads the YAML file when given, or the defaults otherwise.
func loadConfig(cfgFile string) (*config.ConfigData, error) {
	if cfgFile == "" {
		return config.Parse(nil)
	}
	filename, _ := filepath.Abs(cfgFile)
	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}
