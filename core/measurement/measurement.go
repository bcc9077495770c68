// Package measurement normalizes vendor unit labels and converts metric
// readings to their imperial counterparts.
package measurement

import (
	"fmt"
	"math"
)

// Canonical unit symbols.
const (
	Celsius        = "°C"
	Fahrenheit     = "°F"
	Kilometers     = "km"
	Miles          = "mi"
	KiloPascal     = "kPa"
	PSI            = "psi"
	KmPerLitreE    = "km/l(e)"
	MilesPerGallon = "mpg(e)"
	Litres         = "lit"
	Gallons        = "gal"
	KiloWattHour   = "kWh"
	Volts          = "V"
)

const (
	kmPerMile      = 1.609344
	litresPerGal   = 3.785411784
	psiPerKPa      = 0.1450377377
	kmplPerMPG     = kmPerMile / litresPerGal
	fahrenheitBase = 32.0
)

// unitCorrections maps labels reported by the vehicle API to canonical
// symbols. State-like labels map to the empty string.
var unitCorrections = map[string]string{
	"Cel":   Celsius,
	"kwh":   KiloWattHour,
	"KM":    Kilometers,
	"KPa":   KiloPascal,
	"kmple": KmPerLitreE,
	"kmpl":  "km/l",
	"volts": Volts,
	"Volts": Volts,
	"Stat":  "",
	"N/A":   "",
}

type conversion struct {
	unit    string
	convert func(float64) float64
}

var conversions = map[string]conversion{
	Celsius:     {Fahrenheit, func(v float64) float64 { return math.Round(v*9/5 + fahrenheitBase) }},
	Kilometers:  {Miles, func(v float64) float64 { return round1(v / kmPerMile) }},
	KiloPascal:  {PSI, func(v float64) float64 { return round1(v * psiPerKPa) }},
	KmPerLitreE: {MilesPerGallon, func(v float64) float64 { return round1(v / kmplPerMPG) }},
	Litres:      {Gallons, func(v float64) float64 { return round1(v / litresPerGal) }},
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// CorrectUnitName returns the canonical symbol for a vendor unit label.
// Unknown labels are returned unchanged.
func CorrectUnitName(unit string) string {
	if c, ok := unitCorrections[unit]; ok {
		return c
	}
	return unit
}

// IsConvertible reports whether a canonical unit has an imperial conversion.
func IsConvertible(unit string) bool {
	_, ok := conversions[unit]
	return ok
}

// ConvertValue converts v expressed in unit to its imperial counterpart.
// Values in units without a conversion are returned as is.
func ConvertValue(v float64, unit string) float64 {
	c, ok := conversions[unit]
	if !ok {
		return v
	}
	return c.convert(v)
}

// ConvertUnit returns the imperial counterpart of unit, or unit itself.
func ConvertUnit(unit string) string {
	c, ok := conversions[unit]
	if !ok {
		return unit
	}
	return c.unit
}

// Measurement is an immutable value/unit pair with a corrected unit label.
type Measurement struct {
	value       string
	unit        string
	convertible bool
}

// New builds a Measurement from the raw value and vendor unit label.
func New(value, rawUnit string) Measurement {
	unit := CorrectUnitName(rawUnit)
	return Measurement{value: value, unit: unit, convertible: IsConvertible(unit)}
}

// Value returns the raw value as reported by the vehicle.
func (m Measurement) Value() string { return m.value }

// Unit returns the canonical unit, empty for state values.
func (m Measurement) Unit() string { return m.unit }

// IsConvertible reports whether the unit belongs to the convertible set.
func (m Measurement) IsConvertible() bool { return m.convertible }

func (m Measurement) String() string {
	return fmt.Sprintf("%s%s", m.value, m.unit)
}
