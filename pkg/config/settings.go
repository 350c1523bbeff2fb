package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/grid"
	"github.com/chrissnell/inform/internal/join"
	ilog "github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/internal/ncio"
	"github.com/chrissnell/inform/internal/obs"
	"github.com/chrissnell/inform/internal/regime"
)

// Environment variables that override storage settings.
const (
	EnvTimescaleDSN = "INFORM_TIMESCALEDB_DSN"
	EnvSQLitePath   = "INFORM_SQLITE_PATH"
)

const (
	DefaultListenAddr   = "0.0.0.0"
	DefaultPort         = 8080
	DefaultLogMaxSizeMB = 100
)

// Defaults returns a configuration populated from each package's defaults.
func Defaults() *ConfigData {
	rc := regime.DefaultConfig()
	bc := blocks.DefaultConfig()
	gc := grid.DefaultConfig()
	jc := join.DefaultConfig()

	return &ConfigData{
		Input: InputData{
			TimeVariable: ncio.DefaultTimeVariable,
			Model:        ncio.DefaultModelNames(),
			Reanalysis:   ncio.DefaultReanalysisNames(),
		},
		Segmentation: SegmentationData{
			StdWindow:              rc.StdWindow,
			StdThreshold:           rc.StdThreshold,
			MinLevelDuration:       rc.MinLevelDuration,
			MergeGap:               rc.MergeGap,
			LiquidWaterThreshold:   rc.LiquidWaterThreshold,
			ConcentrationThreshold: rc.ConcentrationThreshold,
			MinCloudExcursion:      rc.MinCloudExcursion,
			CloudAltitudeGap:       rc.CloudAltitudeGap,
			BoundaryLayerBuffer:    rc.BoundaryLayerBuffer,
		},
		Extraction: ExtractionData{
			MinProfileExcursion: bc.MinProfileExcursion,
			MinLevelFTDuration:  bc.MinLevelFTDuration,
		},
		Grid: GridData{
			PressureScale: gc.PressureScale,
			WindowPadding: gc.WindowPadding,
		},
		Joins: JoinsData{
			FieldTolerance:    jc.FieldTolerance,
			MaxDistanceKm:     jc.MaxDistanceKm,
			MemoSize:          jc.MemoSize,
			SizeDistTolerance: time.Second,
			SondeTolerance:    time.Second,
			ReanalysisLabel:   "ERA5",
		},
		Server: ServerData{
			ListenAddr: DefaultListenAddr,
			Port:       DefaultPort,
		},
	}
}

// ApplyDefaults fills settings whose zero value is unusable.
func (c *ConfigData) ApplyDefaults() {
	d := Defaults()
	if c.Input.TimeVariable == "" {
		c.Input.TimeVariable = d.Input.TimeVariable
	}
	c.Input.Model = fillNames(c.Input.Model, d.Input.Model)
	if c.Input.Reanalysis.Time == "" {
		c.Input.Reanalysis.Time = d.Input.Reanalysis.Time
	}
	if c.Input.Reanalysis.Lat == "" {
		c.Input.Reanalysis.Lat = d.Input.Reanalysis.Lat
	}
	if c.Input.Reanalysis.Lon == "" {
		c.Input.Reanalysis.Lon = d.Input.Reanalysis.Lon
	}
	if c.Segmentation.StdWindow == 0 {
		c.Segmentation.StdWindow = d.Segmentation.StdWindow
	}
	if c.Grid.PressureScale == 0 {
		c.Grid.PressureScale = d.Grid.PressureScale
	}
	if c.Joins.MemoSize == 0 {
		c.Joins.MemoSize = d.Joins.MemoSize
	}
	if c.Joins.ReanalysisLabel == "" {
		c.Joins.ReanalysisLabel = d.Joins.ReanalysisLabel
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = d.Server.ListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
}

func fillNames(n, d ncio.ModelNames) ncio.ModelNames {
	for _, p := range []struct {
		dst *string
		def string
	}{
		{&n.Time, d.Time}, {&n.Lat, d.Lat}, {&n.Lon, d.Lon},
		{&n.P0, d.P0}, {&n.PS, d.PS}, {&n.A, d.A}, {&n.B, d.B},
	} {
		if *p.dst == "" {
			*p.dst = p.def
		}
	}
	return n
}

// Validate reports the first invalid setting.
func (c *ConfigData) Validate() error {
	known := make(map[string]bool, len(obs.AllRoles))
	for _, r := range obs.AllRoles {
		known[string(r)] = true
	}
	for role := range c.Columns {
		if !known[role] {
			return fmt.Errorf("columns: unknown role %q", role)
		}
	}

	s := c.Segmentation
	switch {
	case s.StdWindow < 1:
		return errors.New("segmentation: std_window must be at least 1")
	case s.MinLevelDuration < 0 || s.MergeGap < 0:
		return errors.New("segmentation: durations must not be negative")
	case c.Extraction.MinLevelFTDuration < 0:
		return errors.New("extraction: min_level_ft_duration must not be negative")
	case c.Grid.PressureScale <= 0:
		return errors.New("grid: pressure_scale must be positive")
	case c.Grid.WindowPadding < 0:
		return errors.New("grid: window_padding must not be negative")
	case c.Joins.FieldTolerance < 0 || c.Joins.EchoTolerance < 0 || c.Joins.SizeDistTolerance < 0 ||
		c.Joins.SondeTolerance < 0 || c.Joins.RegimeTolerance < 0:
		return errors.New("joins: tolerances must not be negative")
	case c.Joins.MaxDistanceKm < 0:
		return errors.New("joins: max_distance_km must not be negative")
	case c.Joins.MemoSize < 1:
		return errors.New("joins: memo_size must be at least 1")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if c.Storage.TimescaleDB != nil && c.Storage.TimescaleDB.ConnectionString == "" {
		return errors.New("storage: timescaledb requires a connection_string")
	}
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		return errors.New("storage: sqlite requires a path")
	}
	return nil
}

// LoadEnv reads .env files into the environment, ignoring files that do
// not exist. With no arguments it reads ./.env.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides storage settings from the environment.
func (c *ConfigData) ApplyEnv() {
	if dsn := os.Getenv(EnvTimescaleDSN); dsn != "" {
		c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: dsn}
	}
	if p := os.Getenv(EnvSQLitePath); p != "" {
		c.Storage.SQLite = &SQLiteData{Path: p}
	}
}

// Roles returns the default column names with the configured overrides.
func (c *ConfigData) Roles() obs.Roles {
	o := make(obs.Roles, len(c.Columns))
	for k, v := range c.Columns {
		o[obs.Role(k)] = v
	}
	return obs.DefaultRoles().Merge(o)
}

func (c *ConfigData) RegimeConfig() regime.Config {
	s := c.Segmentation
	return regime.Config{
		StdWindow:              s.StdWindow,
		StdThreshold:           s.StdThreshold,
		MinLevelDuration:       s.MinLevelDuration,
		MergeGap:               s.MergeGap,
		LiquidWaterThreshold:   s.LiquidWaterThreshold,
		ConcentrationThreshold: s.ConcentrationThreshold,
		MinCloudExcursion:      s.MinCloudExcursion,
		CloudAltitudeGap:       s.CloudAltitudeGap,
		BoundaryLayerBuffer:    s.BoundaryLayerBuffer,
	}
}

func (c *ConfigData) ExtractionConfig() blocks.Config {
	return blocks.Config{
		MinProfileExcursion: c.Extraction.MinProfileExcursion,
		MinLevelFTDuration:  c.Extraction.MinLevelFTDuration,
	}
}

func (c *ConfigData) GridConfig() grid.Config {
	return grid.Config{
		PressureScale:     c.Grid.PressureScale,
		WindowPadding:     c.Grid.WindowPadding,
		ReferenceVariable: c.Grid.ReferenceVariable,
		Variables:         append([]string(nil), c.Grid.Variables...),
	}
}

func (c *ConfigData) JoinConfig() join.Config {
	return join.Config{
		FieldTolerance: c.Joins.FieldTolerance,
		MaxDistanceKm:  c.Joins.MaxDistanceKm,
		MemoSize:       c.Joins.MemoSize,
	}
}

// LogOptions converts the logging section for log.InitWithOptions.
func (c *ConfigData) LogOptions(debug bool) ilog.Options {
	return ilog.Options{
		Debug:      debug,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}
