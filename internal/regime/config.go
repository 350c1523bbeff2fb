package regime

import "time"

// Config holds the thresholds used to segment a flight.
type Config struct {
	// StdWindow is the number of samples in the centered rolling window.
	StdWindow int
	// StdThreshold is the altitude standard deviation below which a row is
	// a level candidate.
	StdThreshold float64
	// MinLevelDuration drops shorter stable runs.
	MinLevelDuration time.Duration
	// MergeGap joins level runs separated by at most this much time, and is
	// the minimum gap for a profile block to exist.
	MergeGap time.Duration

	LiquidWaterThreshold   float64
	ConcentrationThreshold float64
	// MinCloudExcursion drops cloud runs spanning no more altitude than this.
	MinCloudExcursion float64
	// CloudAltitudeGap joins cloud blocks whose altitude gap is at most this.
	CloudAltitudeGap float64
	// BoundaryLayerBuffer is subtracted from the lowest cloud base to get the
	// boundary layer top.
	BoundaryLayerBuffer float64
}

// DefaultConfig returns thresholds tuned for 1 Hz research aircraft data
// with altitude in metres.
func DefaultConfig() Config {
	return Config{
		StdWindow:              10,
		StdThreshold:           3,
		MinLevelDuration:       150 * time.Second,
		MergeGap:               120 * time.Second,
		LiquidWaterThreshold:   0.001,
		ConcentrationThreshold: 10,
		MinCloudExcursion:      30,
		CloudAltitudeGap:       200,
		BoundaryLayerBuffer:    5,
	}
}
