// Package diagnostic turns raw diagnostic groups into typed elements and
// derives imperial siblings for convertible metric readings.
package diagnostic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kilianp07/vehicle2mqtt/core/measurement"
	"github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Element is a named measurement within a diagnostic group.
type Element struct {
	Name        string
	Measurement measurement.Measurement
}

// NewElement corrects the unit of a raw value/unit pair.
func NewElement(name, value, unit string) Element {
	return Element{Name: name, Measurement: measurement.New(value, unit)}
}

// Value returns the raw value.
func (e Element) Value() string { return e.Measurement.Value() }

// Unit returns the canonical unit.
func (e Element) Unit() string { return e.Measurement.Unit() }

func (e Element) String() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Measurement)
}

// Converted returns the imperial sibling of a convertible element. ok is
// false when the unit has no conversion or the value is not numeric.
func (e Element) Converted() (Element, bool) {
	if !e.Measurement.IsConvertible() {
		return Element{}, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(e.Value()), 64)
	if err != nil {
		return Element{}, false
	}
	unit := e.Unit()
	target := measurement.ConvertUnit(unit)
	value := strconv.FormatFloat(measurement.ConvertValue(v, unit), 'f', -1, 64)
	return Element{
		Name:        ConvertedName(e.Name, target),
		Measurement: measurement.New(value, target),
	}, true
}

// ConvertedName builds the name of a derived element: the original name
// followed by the target unit, upper-cased with non-word characters removed.
func ConvertedName(name, unit string) string {
	return name + " " + strings.ToUpper(nonWord.ReplaceAllString(unit, ""))
}

// Diagnostic is a named group of elements.
type Diagnostic struct {
	Name     string
	Elements []Element
}

// Parse keeps the raw entries carrying both a value and a unit, then appends
// one derived element per convertible entry.
func Parse(raw vehicleapi.DiagnosticResponse) Diagnostic {
	d := Diagnostic{Name: raw.Name}
	for _, e := range raw.DiagnosticElement {
		if e.Value == nil || e.Unit == nil {
			continue
		}
		d.Elements = append(d.Elements, NewElement(e.Name, *e.Value, *e.Unit))
	}
	native := len(d.Elements)
	for _, e := range d.Elements[:native] {
		if c, ok := e.Converted(); ok {
			d.Elements = append(d.Elements, c)
		}
	}
	return d
}

// ParseAll parses every group of a diagnostics reply.
func ParseAll(raw []vehicleapi.DiagnosticResponse) []Diagnostic {
	out := make([]Diagnostic, 0, len(raw))
	for _, r := range raw {
		out = append(out, Parse(r))
	}
	return out
}

// HasElements reports whether at least one element survived filtering.
func (d Diagnostic) HasElements() bool { return len(d.Elements) > 0 }

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Name + ":\n")
	for _, e := range d.Elements {
		b.WriteString("  " + e.String() + "\n")
	}
	return b.String()
}
