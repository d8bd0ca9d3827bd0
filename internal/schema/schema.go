// Package schema defines the fixed-width record layouts of the drive
// recorder's log format and the cursor-driven slicer that walks them.
//
// The format is reverse-engineered from device samples: there are no
// delimiters, every field occupies a pre-agreed number of characters, and
// each descriptor's Length is authoritative — it is never inferred from
// the data. Offsets are character offsets into the decoded buffer, not
// byte offsets, because the model field can contain multi-byte Korean
// text.
package schema

// Kind tags a field with its transform. Descriptors are declarative; the
// transform implementations live in internal/transform, keyed by Kind.
type Kind int

const (
	// KindRaw passes the value through with terminator padding trimmed.
	KindRaw Kind = iota
	// KindIdentity strips '#' padding and surrounding whitespace.
	KindIdentity
	// KindRegistration reformats a 10-digit operator registration as
	// AAA-BB-CCCCC.
	KindRegistration
	// KindTimestamp decodes YYMMDDhhmmssff with per-component clamping.
	KindTimestamp
	// KindSpeed decodes km/h with a >200 plausibility correction.
	KindSpeed
	// KindRPM decodes engine RPM with a >10000 plausibility correction.
	KindRPM
	// KindBrake maps "1" to ON, everything else to OFF.
	KindBrake
	// KindLongitude decodes micro-degrees with a ±180° bound.
	KindLongitude
	// KindLatitude decodes micro-degrees with a ±90° bound.
	KindLatitude
	// KindHeading decodes a bearing in degrees, no range correction.
	KindHeading
	// KindAccel decodes a signed tenth-scaled acceleration delta.
	KindAccel
	// KindDistance decodes an integer kilometre count.
	KindDistance
)

// FieldDescriptor declares one fixed-width field: its name in the decoded
// record, the exact number of characters it occupies, and its Kind.
type FieldDescriptor struct {
	Name   string
	Length int
	Kind   Kind
}

// HeaderFields is the vehicle-identity block at the start of every file.
// Lengths sum to HeaderStride.
var HeaderFields = []FieldDescriptor{
	{Name: "model", Length: 20, Kind: KindIdentity},
	{Name: "vin", Length: 17, Kind: KindIdentity},
	{Name: "vehicle_type", Length: 2, Kind: KindRaw},
	{Name: "plate", Length: 9, Kind: KindIdentity},
	{Name: "registration", Length: 10, Kind: KindRegistration},
	{Name: "driver_code", Length: 18, Kind: KindIdentity},
}

// SampleFields is one telemetry sample. Lengths sum to SampleStride.
var SampleFields = []FieldDescriptor{
	{Name: "timestamp", Length: 14, Kind: KindTimestamp},
	{Name: "speed", Length: 3, Kind: KindSpeed},
	{Name: "rpm", Length: 4, Kind: KindRPM},
	{Name: "brake", Length: 1, Kind: KindBrake},
	{Name: "longitude", Length: 9, Kind: KindLongitude},
	{Name: "latitude", Length: 9, Kind: KindLatitude},
	{Name: "heading", Length: 3, Kind: KindHeading},
	{Name: "accel_x", Length: 6, Kind: KindAccel},
	{Name: "accel_y", Length: 6, Kind: KindAccel},
	{Name: "status", Length: 2, Kind: KindRaw},
}

// DistancePrefixFields is the one-shot 11-character block between the
// header and the first sample: daily distance then cumulative distance.
var DistancePrefixFields = []FieldDescriptor{
	{Name: "daily_distance", Length: 4, Kind: KindDistance},
	{Name: "cumulative_distance", Length: 7, Kind: KindDistance},
}

// Record strides, derived once from the tables. Any edit to a table must
// keep the sum equal to the device's record length.
var (
	HeaderStride         = totalLength(HeaderFields)
	SampleStride         = totalLength(SampleFields)
	DistancePrefixStride = totalLength(DistancePrefixFields)
)

func totalLength(fields []FieldDescriptor) int {
	n := 0
	for _, f := range fields {
		n += f.Length
	}
	return n
}

// Slice extracts one raw value per descriptor starting at cursor and
// returns the advanced cursor. A field that runs past the end of the
// buffer yields the best-effort remainder (possibly empty) rather than an
// error, and the cursor still advances by the full declared length so
// later fields stay schema-aligned.
func Slice(buf []rune, cursor int, fields []FieldDescriptor) ([]string, int) {
	values := make([]string, len(fields))
	for i, f := range fields {
		start, end := cursor, cursor+f.Length
		if start > len(buf) {
			start = len(buf)
		}
		if end > len(buf) {
			end = len(buf)
		}
		values[i] = string(buf[start:end])
		cursor += f.Length
	}
	return values, cursor
}
