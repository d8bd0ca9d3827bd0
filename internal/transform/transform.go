// Package transform converts raw fixed-width field values into
// display-ready strings.
//
// Every transform is a pure function: identical input always produces
// identical output. The recorder occasionally emits out-of-range values
// (sensor glitches, encoding drift), so several transforms carry a
// plausibility correction — a deterministic re-derivation from a prefix of
// the raw value when the straightforward parse lands outside the device's
// physical range. Those corrections are part of the output contract, not
// validation: a single corrupt field must not blank an otherwise usable
// record.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tacho_parser/internal/schema"
)

// Func converts one raw fixed-width value into its display form.
type Func func(raw string) string

// byKind maps each field kind to its transform. The table is lookup-only;
// no transform holds state.
var byKind = map[schema.Kind]Func{
	schema.KindRaw:          Raw,
	schema.KindIdentity:     Identity,
	schema.KindRegistration: Registration,
	schema.KindTimestamp:    Timestamp,
	schema.KindSpeed:        Speed,
	schema.KindRPM:          RPM,
	schema.KindBrake:        Brake,
	schema.KindLongitude:    Longitude,
	schema.KindLatitude:     Latitude,
	schema.KindHeading:      Heading,
	schema.KindAccel:        Accel,
	schema.KindDistance:     Distance,
}

// Apply runs the transform registered for kind against raw.
func Apply(kind schema.Kind, raw string) (string, error) {
	fn, ok := byKind[kind]
	if !ok {
		return "", fmt.Errorf("no transform for field kind %d", kind)
	}
	return fn(raw), nil
}

// Raw returns the value with terminator padding trimmed from both ends.
func Raw(raw string) string {
	return strings.TrimSpace(strings.Trim(raw, "#"))
}

// Identity cleans a header identity field: all '#' padding characters are
// removed, then surrounding whitespace is trimmed.
func Identity(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "#", ""))
}

// Registration reformats a 10-character operator registration number with
// 3-2-5 hyphen grouping. Any other length passes through unchanged.
func Registration(raw string) string {
	if len(raw) != 10 {
		return raw
	}
	return raw[0:3] + "-" + raw[3:5] + "-" + raw[5:10]
}

// Timestamp decodes 14 raw digits of YYMMDDhhmmssff into
// "YYYY-MM-DD hh:mm:ss.ff". The century is fixed at 2000. Each component
// is clamped independently: an invalid month or day becomes "01", an
// invalid hour, minute or second becomes "00". Input of any other length
// passes through unchanged.
func Timestamp(raw string) string {
	if len(raw) != 14 {
		return raw
	}
	month := clampComponent(raw[2:4], 1, 12, "01")
	day := clampComponent(raw[4:6], 1, 31, "01")
	hour := clampComponent(raw[6:8], 0, 23, "00")
	minute := clampComponent(raw[8:10], 0, 59, "00")
	second := clampComponent(raw[10:12], 0, 59, "00")
	return fmt.Sprintf("20%s-%s-%s %s:%s:%s.%s",
		raw[0:2], month, day, hour, minute, second, raw[12:14])
}

// clampComponent keeps the raw two-digit component when its integer value
// is within [min, max], otherwise substitutes fallback.
func clampComponent(raw string, min, max int, fallback string) string {
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return fallback
	}
	return raw
}

// Speed decodes 3 raw digits of km/h. Values above 200 are implausible
// for this device; the corrected value is re-parsed from the first two
// characters only.
func Speed(raw string) string {
	n := parseInt(raw)
	if n > 200 {
		n = parseInt(prefix(raw, 2))
	}
	return strconv.Itoa(n) + " km/h"
}

// RPM decodes 4 raw digits of engine RPM, re-deriving from the first
// three characters when the parse exceeds 10000.
func RPM(raw string) string {
	n := parseInt(raw)
	if n > 10000 {
		n = parseInt(prefix(raw, 3))
	}
	return strconv.Itoa(n) + " RPM"
}

// Brake maps the single-digit brake signal: "1" is ON, anything else OFF.
func Brake(raw string) string {
	if raw == "1" {
		return "ON"
	}
	return "OFF"
}

// Longitude decodes 9 raw digits of micro-degrees. Magnitudes beyond 180°
// are re-derived from the first three characters divided by 10.
func Longitude(raw string) string {
	deg := float64(parseInt(raw)) / 1e6
	if math.Abs(deg) > 180 {
		deg = float64(parseInt(prefix(raw, 3))) / 10
	}
	return strconv.FormatFloat(deg, 'f', 6, 64)
}

// Latitude decodes 9 raw digits of micro-degrees with a 90° bound; the
// correction uses the first two characters divided by 10.
func Latitude(raw string) string {
	deg := float64(parseInt(raw)) / 1e6
	if math.Abs(deg) > 90 {
		deg = float64(parseInt(prefix(raw, 2))) / 10
	}
	return strconv.FormatFloat(deg, 'f', 6, 64)
}

// Heading decodes 3 raw digits of bearing. No range correction: the
// recorder has never been observed emitting an implausible heading.
func Heading(raw string) string {
	return strconv.Itoa(parseInt(raw)) + "°"
}

// Accel decodes a 6-character acceleration delta scaled by 10.
//
// A leading '-' switches to sign-magnitude parsing: the remainder is
// parsed as a positive magnitude and negated, which sidesteps the sign
// handling of the generic parse. Only non-negative raw values get the
// >50 plausibility correction; whether negative-but-implausible values
// should be corrected too is unknown, so they are left alone.
func Accel(raw string) string {
	var v float64
	if strings.HasPrefix(raw, "-") {
		v = -parseFloat(raw[1:]) / 10
	} else {
		v = parseFloat(raw) / 10
		if math.Abs(v) > 50 {
			v = parseFloat(prefix(raw, 2)) / 10
		}
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " m/s²"
}

// Distance decodes an integer kilometre count.
func Distance(raw string) string {
	return strconv.Itoa(parseInt(raw)) + " km"
}

// parseInt parses raw as a base-10 integer, defaulting to 0 on any
// failure.
func parseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// parseFloat parses raw as a decimal number, defaulting to 0 on any
// failure.
func parseFloat(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return f
}

// prefix returns the first n characters of raw, or all of raw when it is
// shorter. Truncated fields at the end of a buffer can be shorter than
// the correction expects.
func prefix(raw string, n int) string {
	if len(raw) < n {
		return raw
	}
	return raw[:n]
}
