package regime

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/inform/internal/window"
)

// RollingStd returns the centered rolling sample standard deviation of v.
// Row i uses rows [i-w/2, i+(w-1)/2]; rows whose window runs off either end
// of the series, or contains NaN, get NaN.
func RollingStd(v []float64, w int) []float64 {
	out := make([]float64, len(v))
	before, after := w/2, (w-1)/2
	for i := range v {
		lo, hi := i-before, i+after
		if w < 2 || lo < 0 || hi >= len(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(v[lo:hi+1], nil)
	}
	return out
}

// levelBlocks finds stable-altitude runs, drops short ones and merges those
// separated by no more than cfg.MergeGap.
func levelBlocks(times []time.Time, alt []float64, cfg Config) []window.Interval {
	std := RollingStd(alt, cfg.StdWindow)
	stable := make([]bool, len(std))
	for i, s := range std {
		// NaN compares false, so incomplete windows are never stable.
		stable[i] = s < cfg.StdThreshold
	}

	runs := window.Runs(times, stable, alt, nil)
	for i := range runs {
		runs[i].Category = string(Level)
	}
	runs = window.FilterDuration(runs, cfg.MinLevelDuration)
	return window.MergeByGap(runs, cfg.MergeGap)
}

// tile turns merged level runs into level and profile blocks covering the
// whole series [first, last]. Gaps between levels, and before the first or
// after the last level, become profiles when they exceed cfg.MergeGap;
// shorter leading or trailing gaps are absorbed by the adjacent block.
func tile(levels []window.Interval, first, last time.Time, cfg Config) []FlightBlock {
	blocks := make([]FlightBlock, 0, 2*len(levels)+1)

	if levels[0].Start.Sub(first) > cfg.MergeGap {
		blocks = append(blocks, FlightBlock{Type: Profile, Start: first, End: levels[0].Start})
	}

	for i, lv := range levels {
		blocks = append(blocks, FlightBlock{Type: Level, Start: lv.Start, End: lv.End})
		if i+1 < len(levels) && levels[i+1].Start.Sub(lv.End) > cfg.MergeGap {
			blocks = append(blocks, FlightBlock{Type: Profile, Start: lv.End, End: levels[i+1].Start})
		}
	}

	if last.Sub(levels[len(levels)-1].End) > cfg.MergeGap {
		blocks = append(blocks, FlightBlock{Type: Profile, Start: levels[len(levels)-1].End, End: last})
	}

	if blocks[0].Start.After(first) {
		blocks[0].Start = first
	}
	if blocks[len(blocks)-1].End.Before(last) {
		blocks[len(blocks)-1].End = last
	}
	return blocks
}

// assignBlocks maps every row to the last block starting at or before it.
// A boundary instant shared by two blocks belongs to the later one; rows
// before the first block belong to the first block.
func assignBlocks(times []time.Time, blocks []FlightBlock) []int {
	idx := make([]int, len(times))
	k := 0
	for i, t := range times {
		for k+1 < len(blocks) && !blocks[k+1].Start.After(t) {
			k++
		}
		idx[i] = k
	}
	return idx
}

// blockBounds sets each block's altitude bounds from the rows assigned to it.
func blockBounds(blocks []FlightBlock, assigned []int, alt []float64) {
	for i := range blocks {
		blocks[i].Lower, blocks[i].Upper = math.NaN(), math.NaN()
	}
	for r, b := range assigned {
		a := alt[r]
		if math.IsNaN(blocks[b].Lower) || a < blocks[b].Lower {
			blocks[b].Lower = a
		}
		if math.IsNaN(blocks[b].Upper) || a > blocks[b].Upper {
			blocks[b].Upper = a
		}
	}
}
