// Package units converts measurements between a fixed set of units of
// temperature, length, and mass.
package units

import (
	"errors"
	"sort"
)

// ErrUnknown is the error wrapped by Convert for a conversion key not in the
// table.
var ErrUnknown = errors.New("unknown conversion")

var conversions = map[string]func(float64) float64{
	"c_to_f": func(c float64) float64 { return c*9/5 + 32 },
	"f_to_c": func(f float64) float64 { return (f - 32) * 5 / 9 },
	"c_to_k": func(c float64) float64 { return c + 273.15 },
	"k_to_c": func(k float64) float64 { return k - 273.15 },

	"m_to_cm":  func(m float64) float64 { return m * 100 },
	"cm_to_m":  func(cm float64) float64 { return cm / 100 },
	"m_to_km":  func(m float64) float64 { return m / 1000 },
	"km_to_m":  func(km float64) float64 { return km * 1000 },
	"in_to_cm": func(in float64) float64 { return in * 2.54 },
	"cm_to_in": func(cm float64) float64 { return cm / 2.54 },
	"ft_to_m":  func(ft float64) float64 { return ft * 0.3048 },
	"m_to_ft":  func(m float64) float64 { return m / 0.3048 },

	"kg_to_g":  func(kg float64) float64 { return kg * 1000 },
	"g_to_kg":  func(g float64) float64 { return g / 1000 },
	"lb_to_kg": func(lb float64) float64 { return lb * 0.45359237 },
	"kg_to_lb": func(kg float64) float64 { return kg / 0.45359237 },
}

// Error is an error for a conversion key that is not in the table. It
// unwraps to ErrUnknown.
type Error struct {
	Key string
}

func (err *Error) Error() string {
	return "unknown conversion: " + err.Key
}

func (err *Error) Unwrap() error {
	return ErrUnknown
}

// Convert applies the conversion named by key to v.
func Convert(key string, v float64) (float64, error) {
	f := conversions[key]
	if f == nil {
		return 0, &Error{Key: key}
	}
	return f(v), nil
}

// Keys returns the names of all conversions in sorted order.
func Keys() []string {
	r := make([]string, 0, len(conversions))
	for k := range conversions {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}
