// Package assemble composes the schema slicer and the field transforms
// into decoded records.
//
// A file decodes in three phases: the vehicle header once at offset zero,
// an 11-character distance prefix once (daily and cumulative distance,
// attached to the first sample only), then telemetry samples at a fixed
// stride until fewer than one stride of characters remains. The distance
// prefix is an explicit phase rather than an "is first record" flag so
// the sample loop cannot desync from the buffer position.
package assemble

import (
	"tacho_parser/internal/schema"
	"tacho_parser/internal/tacho"
	"tacho_parser/internal/transform"
)

// Header decodes the vehicle-identity block at the start of buf and
// returns the cursor positioned after it.
func Header(buf []rune) (tacho.VehicleHeader, int, error) {
	values, cursor := schema.Slice(buf, 0, schema.HeaderFields)

	var h tacho.VehicleHeader
	for i, f := range schema.HeaderFields {
		v, err := transform.Apply(f.Kind, values[i])
		if err != nil {
			return tacho.VehicleHeader{}, cursor, err
		}
		switch f.Name {
		case "model":
			h.Model = v
		case "vin":
			h.VIN = v
		case "vehicle_type":
			h.VehicleType = v
		case "plate":
			h.Plate = v
		case "registration":
			h.Registration = v
		case "driver_code":
			h.DriverCode = v
		}
	}
	return h, cursor, nil
}

// DistancePrefix decodes the one-shot daily/cumulative distance block at
// cursor and returns the advanced cursor.
func DistancePrefix(buf []rune, cursor int) (daily, cumulative string, next int, err error) {
	values, next := schema.Slice(buf, cursor, schema.DistancePrefixFields)
	daily, err = transform.Apply(schema.KindDistance, values[0])
	if err != nil {
		return "", "", next, err
	}
	cumulative, err = transform.Apply(schema.KindDistance, values[1])
	if err != nil {
		return "", "", next, err
	}
	return daily, cumulative, next, nil
}

// Sample decodes one telemetry sample at cursor. The caller is
// responsible for checking that a full stride remains; index is the
// 1-based position the sample will take among successfully parsed
// samples.
func Sample(buf []rune, cursor, index int) (tacho.TelemetrySample, int, error) {
	values, next := schema.Slice(buf, cursor, schema.SampleFields)

	s := tacho.TelemetrySample{Index: index}
	for i, f := range schema.SampleFields {
		v, err := transform.Apply(f.Kind, values[i])
		if err != nil {
			return tacho.TelemetrySample{}, next, err
		}
		switch f.Name {
		case "timestamp":
			s.Timestamp = v
		case "speed":
			s.Speed = v
		case "rpm":
			s.RPM = v
		case "brake":
			s.Brake = v
		case "longitude":
			s.Longitude = v
		case "latitude":
			s.Latitude = v
		case "heading":
			s.Heading = v
		case "accel_x":
			s.AccelX = v
		case "accel_y":
			s.AccelY = v
		case "status":
			s.Status = v
		}
	}
	return s, next, nil
}
