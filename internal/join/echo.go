package join

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EchoTypeColumn is the column the radar echo classification is joined into.
const EchoTypeColumn = "Echo_Type"

// Radar echo classification codes.
const (
	EchoStratiformLow     = 14
	EchoStratiformMid     = 16
	EchoStratiformHigh    = 18
	EchoMixed             = 25
	EchoConvective        = 30
	EchoConvectiveElev    = 32
	EchoConvectiveShallow = 34
	EchoConvectiveMid     = 36
	EchoConvectiveDeep    = 38
)

var echoNames = map[int]string{
	EchoStratiformLow:     "stratiform low",
	EchoStratiformMid:     "stratiform mid",
	EchoStratiformHigh:    "stratiform high",
	EchoMixed:             "mixed",
	EchoConvective:        "convective",
	EchoConvectiveElev:    "convective elevated",
	EchoConvectiveShallow: "convective shallow",
	EchoConvectiveMid:     "convective mid",
	EchoConvectiveDeep:    "convective deep",
}

var echoCodes = []int{
	EchoStratiformLow, EchoStratiformMid, EchoStratiformHigh, EchoMixed,
	EchoConvective, EchoConvectiveElev, EchoConvectiveShallow, EchoConvectiveMid, EchoConvectiveDeep,
}

// EchoTypeName returns the label of an echo classification code, or
// "unknown".
func EchoTypeName(code int) string {
	if n, ok := echoNames[code]; ok {
		return n
	}
	return "unknown"
}

// DominantEchoType summarizes a segment's joined echo column as the code
// closest to its mean. ok is false when no row matched a radar sample.
func DominantEchoType(values []float64) (code int, ok bool) {
	var finite []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, false
	}
	mean := stat.Mean(finite, nil)

	best := echoCodes[0]
	for _, c := range echoCodes[1:] {
		if math.Abs(float64(c)-mean) < math.Abs(float64(best)-mean) {
			best = c
		}
	}
	return best, true
}
