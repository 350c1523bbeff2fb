package grid

import (
	"time"
)

// Bounds are the inclusive model index ranges covered by a product.
type Bounds struct {
	Lat [2]int `json:"lat"`
	Lon [2]int `json:"lon"`
	Alt [2]int `json:"alt"`
}

// Shape returns the grid extent as (alt, lat, lon).
func (b Bounds) Shape() (nAlt, nLat, nLon int) {
	return b.Alt[1] - b.Alt[0] + 1, b.Lat[1] - b.Lat[0] + 1, b.Lon[1] - b.Lon[0] + 1
}

// Array3 is a dense (alt, lat, lon) array stored in row-major order.
type Array3 struct {
	NAlt, NLat, NLon int
	Data             []float64
}

// NewArray3 returns a zero-filled array.
func NewArray3(nAlt, nLat, nLon int) Array3 {
	return Array3{NAlt: nAlt, NLat: nLat, NLon: nLon, Data: make([]float64, nAlt*nLat*nLon)}
}

func (a Array3) index(k, j, i int) int {
	return (k*a.NLat+j)*a.NLon + i
}

// At returns the value at (alt k, lat j, lon i).
func (a Array3) At(k, j, i int) float64 {
	return a.Data[a.index(k, j, i)]
}

// Set stores v at (alt k, lat j, lon i).
func (a Array3) Set(k, j, i int, v float64) {
	a.Data[a.index(k, j, i)] = v
}

// Cell is one populated grid cell.
type Cell struct {
	Alt int `json:"alt_index"`
	Lat int `json:"lat_index"`
	Lon int `json:"lon_index"`
	// Time is the midpoint of the earliest and latest sample that last
	// wrote the cell.
	Time      time.Time          `json:"time"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Altitude  float64            `json:"altitude"`
	Values    map[string]float64 `json:"values"`
}

// Product is the gridded comparison of one flight against a model grid.
type Product struct {
	Bounds    Bounds
	Variables []string
	LongNames map[string]string
	// Fields holds the per-variable cell means; unwritten cells are zero.
	Fields  map[string]Array3
	MeanLat Array3
	MeanLon Array3
	MeanAlt Array3
	// Cells lists the populated cells ordered by mid-time.
	Cells []Cell
	// Windows is the number of comparison windows that held samples.
	Windows int
	// Dropped counts samples that fell outside the grid window.
	Dropped int
}

// PopulatedCells is the column-oriented view of the populated cells handed
// to writers.
type PopulatedCells struct {
	Time      []time.Time
	Latitude  []float64
	Longitude []float64
	Altitude  []float64
	Variables []string
	Values    map[string][]float64
	LongNames map[string]string
}

// Len returns the number of cells.
func (p *PopulatedCells) Len() int {
	return len(p.Time)
}

// Populated returns the populated cells as parallel columns.
func (p *Product) Populated() *PopulatedCells {
	out := &PopulatedCells{
		Time:      make([]time.Time, len(p.Cells)),
		Latitude:  make([]float64, len(p.Cells)),
		Longitude: make([]float64, len(p.Cells)),
		Altitude:  make([]float64, len(p.Cells)),
		Variables: append([]string(nil), p.Variables...),
		Values:    make(map[string][]float64, len(p.Variables)),
		LongNames: make(map[string]string, len(p.LongNames)),
	}
	for _, v := range p.Variables {
		out.Values[v] = make([]float64, len(p.Cells))
	}
	for i, c := range p.Cells {
		out.Time[i] = c.Time
		out.Latitude[i] = c.Latitude
		out.Longitude[i] = c.Longitude
		out.Altitude[i] = c.Altitude
		for _, v := range p.Variables {
			out.Values[v][i] = c.Values[v]
		}
	}
	for k, v := range p.LongNames {
		out.LongNames[k] = v
	}
	return out
}
