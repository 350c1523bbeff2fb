// Package regime labels each sample of a flight with its flight type (level
// or profile), cloud status and altitude regime, and groups the labels into
// contiguous blocks.
package regime

import (
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/obs"
)

// Classifier segments observation tables.
type Classifier struct {
	cfg    Config
	roles  obs.Roles
	logger *zap.SugaredLogger
}

// NewClassifier returns a classifier reading columns through roles.
func NewClassifier(cfg Config, roles obs.Roles, logger *zap.SugaredLogger) *Classifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Classifier{cfg: cfg, roles: roles, logger: logger}
}

// Classify labels every row of tbl. The altitude column is essential; the
// cloud-probe columns are optional and their absence yields a table that is
// entirely out-of-cloud and in the free troposphere.
func (c *Classifier) Classify(tbl *obs.Table) (*Result, error) {
	if err := tbl.Require(c.roles, obs.RoleAltitude); err != nil {
		return nil, err
	}
	if tbl.Len() == 0 {
		return nil, ErrNoStableSignal
	}

	times := tbl.Times()
	alt, _ := tbl.Column(c.roles.Column(obs.RoleAltitude))

	levels := levelBlocks(times, alt, c.cfg)
	if len(levels) == 0 {
		return nil, ErrNoStableSignal
	}
	flights := tile(levels, tbl.Start(), tbl.End(), c.cfg)
	assigned := assignBlocks(times, flights)
	blockBounds(flights, assigned, alt)

	res := &Result{
		Table:              tbl,
		FlightBlocks:       flights,
		MinInCloudAltitude: math.NaN(),
	}

	mask, err := c.cloudMask(tbl)
	if err != nil {
		c.logger.Warnf("cloud detection disabled: %v", err)
		res.Warnings = append(res.Warnings, err)
	}

	if mask != nil {
		merged, err := cloudBlocks(times, alt, mask, c.cfg, c.logger)
		if err != nil {
			return nil, err
		}
		for _, iv := range merged {
			res.CloudBlocks = append(res.CloudBlocks, CloudBlock{
				Start: iv.Start,
				End:   iv.End,
				Lower: iv.Lower,
				Upper: iv.Upper,
			})
		}
	}

	if len(res.CloudBlocks) > 0 {
		base := res.CloudBlocks[0].Lower
		for _, cb := range res.CloudBlocks[1:] {
			base = math.Min(base, cb.Lower)
		}
		res.MinInCloudAltitude = base - c.cfg.BoundaryLayerBuffer
	}

	locate := func(lower float64) Location {
		if lower < res.MinInCloudAltitude {
			return BoundaryLayer
		}
		return Free
	}
	for i := range res.FlightBlocks {
		res.FlightBlocks[i].Location = locate(res.FlightBlocks[i].Lower)
	}
	for i := range res.CloudBlocks {
		res.CloudBlocks[i].Location = locate(res.CloudBlocks[i].Lower)
	}

	res.Labels = make([]Label, tbl.Len())
	for i, t := range times {
		l := Label{
			FlightType:  flights[assigned[i]].Type,
			CloudStatus: OutOfCloud,
			Location:    locate(alt[i]),
		}
		for _, cb := range res.CloudBlocks {
			if cb.Contains(alt[i], t) {
				l.CloudStatus = InCloud
				break
			}
		}
		switch {
		case i == 0:
			l.BlockID = 1
		case l.sameClass(res.Labels[i-1]):
			l.BlockID = res.Labels[i-1].BlockID
		default:
			l.BlockID = res.Labels[i-1].BlockID + 1
		}
		res.Labels[i] = l
	}

	c.logger.Debugw("classified flight",
		"rows", tbl.Len(),
		"flight_blocks", len(res.FlightBlocks),
		"cloud_blocks", len(res.CloudBlocks),
		"blocks", res.Labels[len(res.Labels)-1].BlockID,
	)
	return res, nil
}

// cloudMask returns nil and an ErrMissingOptionalField when either probe
// column is unmapped or absent.
func (c *Classifier) cloudMask(tbl *obs.Table) ([]bool, error) {
	lwcName := c.roles.Column(obs.RoleLiquidWater)
	concName := c.roles.Column(obs.RoleDropletConcentration)

	lwc, ok := tbl.Column(lwcName)
	if !ok {
		return nil, &obs.FieldError{Role: obs.RoleLiquidWater, Column: lwcName, Err: obs.ErrMissingOptionalField}
	}
	conc, ok := tbl.Column(concName)
	if !ok {
		return nil, &obs.FieldError{Role: obs.RoleDropletConcentration, Column: concName, Err: obs.ErrMissingOptionalField}
	}
	return cloudMask(lwc, conc, c.cfg), nil
}
