package responseformat

import (
	"math"
	"strconv"
)

// Float is a float64 that encodes NaN and infinities as JSON null.
// MessagePack carries them unchanged.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON reads null as NaN.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats converts a map of float64 values.
func Floats(in map[string]float64) map[string]Float {
	out := make(map[string]Float, len(in))
	for k, v := range in {
		out[k] = Float(v)
	}
	return out
}
