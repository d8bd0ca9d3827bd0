// Package tacho provides the record types produced by the drive-log decoder.
package tacho

import "fmt"

// VehicleHeader is the one-per-file vehicle identity block. All values are
// display-ready strings; the decoder never exposes raw field bytes.
type VehicleHeader struct {
	Model        string `json:"model"`                 // Device model name (may contain Korean text).
	VIN          string `json:"vin"`                   // Chassis number.
	VehicleType  string `json:"vehicle_type"`          // Two-character type code, passed through.
	Plate        string `json:"plate"`                 // Licence plate number.
	Registration string `json:"registration"`          // Operator registration, AAA-BB-CCCCC when 10 digits.
	DriverCode   string `json:"driver_code,omitempty"` // Driver identification code.
}

// TelemetrySample is one timestamped reading from the recorder. Index is
// 1-based over successfully parsed samples; DailyDistance and
// CumulativeDistance are set only on the first sample of a file.
type TelemetrySample struct {
	Index              int    `json:"index"`
	DailyDistance      string `json:"daily_distance,omitempty"`
	CumulativeDistance string `json:"cumulative_distance,omitempty"`
	Timestamp          string `json:"timestamp"` // "YYYY-MM-DD hh:mm:ss.ff"
	Speed              string `json:"speed"`     // e.g. "60 km/h"
	RPM                string `json:"rpm"`       // e.g. "2100 RPM"
	Brake              string `json:"brake"`     // "ON" or "OFF"
	Longitude          string `json:"longitude"` // degrees, 6 decimal places
	Latitude           string `json:"latitude"`  // degrees, 6 decimal places
	Heading            string `json:"heading"`   // e.g. "187°"
	AccelX             string `json:"accel_x"`   // lateral delta, e.g. "-30.0 m/s²"
	AccelY             string `json:"accel_y"`   // longitudinal delta
	Status             string `json:"status"`    // device/comm status code, passed through
}

// DecodeError records a single record that failed to decode. The decode as
// a whole continues past it.
type DecodeError struct {
	Offset int    `json:"offset"` // Character offset of the record in the buffer.
	Index  int    `json:"index"`  // Ordinal position among attempted records.
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("record %d at offset %d: %v", e.Index, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeResult is the complete output of one decode run. Samples preserve
// input order; Errors lists records that were skipped.
type DecodeResult struct {
	Header  VehicleHeader     `json:"header"`
	Samples []TelemetrySample `json:"samples"`
	Errors  []*DecodeError    `json:"errors,omitempty"`
}

// FatalInputError aborts a decode before any record is produced: empty
// input, or input that neither supported encoding can decode.
type FatalInputError struct {
	Reason string
	Err    error
}

func (e *FatalInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal input: %s: %v", e.Reason, e.Err)
	}
	return "fatal input: " + e.Reason
}

func (e *FatalInputError) Unwrap() error { return e.Err }
