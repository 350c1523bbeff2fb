package regime

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/window"
)

// cloudMask marks rows where both liquid water content and droplet number
// concentration exceed their thresholds. NaN never qualifies.
func cloudMask(lwc, conc []float64, cfg Config) []bool {
	mask := make([]bool, len(lwc))
	for i := range lwc {
		mask[i] = lwc[i] > cfg.LiquidWaterThreshold && conc[i] > cfg.ConcentrationThreshold
	}
	return mask
}

// cloudBlocks builds merged cloud blocks from the detection mask. The runs
// are ordered by cloud base and merged twice: first on altitude gap alone,
// then on altitude gap or overlap.
func cloudBlocks(times []time.Time, alt []float64, mask []bool, cfg Config, logger *zap.SugaredLogger) ([]window.Interval, error) {
	runs := window.FilterExcursion(window.Runs(times, mask, alt, nil), cfg.MinCloudExcursion)
	if len(runs) == 0 {
		return nil, nil
	}
	sortByBase(runs)

	pass1 := mergeClouds(runs, cfg.CloudAltitudeGap, false)
	if !sortedByBase(pass1) {
		return nil, fmt.Errorf("%w: gap pass left blocks out of order", ErrMergeInvariant)
	}
	if n := overlaps(pass1); n > 0 {
		logger.Debugf("gap merge left %d overlapping cloud block pair(s); resolving in overlap pass", n)
	}

	sortByBase(pass1)
	pass2 := mergeClouds(pass1, cfg.CloudAltitudeGap, true)
	if !sortedByBase(pass2) {
		return nil, fmt.Errorf("%w: overlap pass left blocks out of order", ErrMergeInvariant)
	}
	if n := overlaps(pass2); n > 0 {
		return nil, fmt.Errorf("%w: %d overlapping block pair(s) after overlap pass", ErrMergeInvariant, n)
	}
	return pass2, nil
}

func mergeClouds(in []window.Interval, gap float64, withOverlap bool) []window.Interval {
	out := []window.Interval{in[0]}
	for _, cur := range in[1:] {
		prev := &out[len(out)-1]
		near := math.Abs(cur.Lower-prev.Upper) <= gap
		inside := withOverlap && cur.Lower >= prev.Lower && cur.Lower <= prev.Upper
		if near || inside {
			*prev = window.Union(*prev, cur)
			continue
		}
		out = append(out, cur)
	}
	return out
}

func sortByBase(ivs []window.Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		return ivs[i].Lower < ivs[j].Lower
	})
}

func sortedByBase(ivs []window.Interval) bool {
	for i := 1; i < len(ivs); i++ {
		if ivs[i].Lower < ivs[i-1].Lower {
			return false
		}
	}
	return true
}

// overlaps counts consecutive pairs whose altitude ranges intersect.
func overlaps(ivs []window.Interval) int {
	n := 0
	for i := 1; i < len(ivs); i++ {
		if ivs[i].Lower <= ivs[i-1].Upper {
			n++
		}
	}
	return n
}
