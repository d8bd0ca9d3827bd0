package decoder

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"tacho_parser/internal/schema"
	"tacho_parser/internal/tacho"
)

const (
	testHeader = "TACHO-X1############" +
		"KMHXX00XXXX000000" +
		"11" +
		"12GA3456#" +
		"1234567890" +
		"DRV001############"

	testPrefix = "0123" + "0456789"

	testSample = "25011100000000" + "060" + "2100" + "1" +
		"127123456" + "037123456" + "187" + "000300" + "-00300" + "00"
)

// buildFile assembles a synthetic log with n identical samples.
func buildFile(n int) []byte {
	var b strings.Builder
	b.WriteString(testHeader)
	b.WriteString(testPrefix)
	for i := 0; i < n; i++ {
		b.WriteString(testSample)
	}
	return []byte(b.String())
}

func TestDecode_TwoSamples(t *testing.T) {
	// Guard the fixture itself: one mis-sized field shifts every sample
	// after the first.
	if n := len([]rune(testSample)); n != schema.SampleStride {
		t.Fatalf("len(testSample) = %d, want %d", n, schema.SampleStride)
	}

	result, err := Decode(context.Background(), buildFile(2))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if result.Header.Plate != "12GA3456" {
		t.Errorf("Plate = %q, want %q", result.Header.Plate, "12GA3456")
	}
	if result.Header.Registration != "123-45-67890" {
		t.Errorf("Registration = %q, want %q", result.Header.Registration, "123-45-67890")
	}

	if len(result.Samples) != 2 {
		t.Fatalf("len(Samples) = %d, want 2", len(result.Samples))
	}
	if result.Samples[0].Index != 1 || result.Samples[1].Index != 2 {
		t.Errorf("indices = %d, %d, want 1, 2", result.Samples[0].Index, result.Samples[1].Index)
	}

	// Distances belong to the first sample only.
	if result.Samples[0].DailyDistance != "123 km" {
		t.Errorf("DailyDistance = %q, want %q", result.Samples[0].DailyDistance, "123 km")
	}
	if result.Samples[0].CumulativeDistance != "456789 km" {
		t.Errorf("CumulativeDistance = %q, want %q", result.Samples[0].CumulativeDistance, "456789 km")
	}
	if result.Samples[1].DailyDistance != "" || result.Samples[1].CumulativeDistance != "" {
		t.Error("second sample should not carry distance values")
	}

	// The second sample starts one stride after the first; its values only
	// come out right when the strides line up exactly.
	s2 := result.Samples[1]
	if s2.Timestamp != "2025-01-11 00:00:00.00" {
		t.Errorf("Samples[1].Timestamp = %q, want %q", s2.Timestamp, "2025-01-11 00:00:00.00")
	}
	if s2.Speed != "60 km/h" {
		t.Errorf("Samples[1].Speed = %q, want %q", s2.Speed, "60 km/h")
	}
	if s2.AccelY != "-30.0 m/s²" {
		t.Errorf("Samples[1].AccelY = %q, want %q", s2.AccelY, "-30.0 m/s²")
	}
	if s2.Status != "00" {
		t.Errorf("Samples[1].Status = %q, want %q", s2.Status, "00")
	}

	if len(result.Errors) != 0 {
		t.Errorf("len(Errors) = %d, want 0", len(result.Errors))
	}
}

func TestDecode_BadRecordsAccumulated(t *testing.T) {
	// Point one sample field at a kind with no registered transform so
	// every record attempt fails. The decode must keep walking the buffer,
	// tagging each failure with its character offset and attempt ordinal
	// instead of aborting on the first one.
	orig := schema.SampleFields
	defer func() { schema.SampleFields = orig }()

	broken := make([]schema.FieldDescriptor, len(orig))
	copy(broken, orig)
	broken[len(broken)-1].Kind = schema.Kind(-1)
	schema.SampleFields = broken

	result, err := Decode(context.Background(), buildFile(3))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	// Header and prefix decode normally; only the sample records fail.
	if result.Header.Plate != "12GA3456" {
		t.Errorf("Plate = %q, want %q", result.Header.Plate, "12GA3456")
	}
	if len(result.Samples) != 0 {
		t.Errorf("len(Samples) = %d, want 0", len(result.Samples))
	}
	if len(result.Errors) != 3 {
		t.Fatalf("len(Errors) = %d, want 3", len(result.Errors))
	}

	start := schema.HeaderStride + schema.DistancePrefixStride
	for i, decErr := range result.Errors {
		if want := start + i*schema.SampleStride; decErr.Offset != want {
			t.Errorf("Errors[%d].Offset = %d, want %d", i, decErr.Offset, want)
		}
		if decErr.Index != i+1 {
			t.Errorf("Errors[%d].Index = %d, want %d", i, decErr.Index, i+1)
		}
		if decErr.Reason == "" {
			t.Errorf("Errors[%d].Reason is empty", i)
		}
		if decErr.Unwrap() == nil {
			t.Errorf("Errors[%d] carries no underlying error", i)
		}
	}
}

func TestDecode_TrailingPartialDropped(t *testing.T) {
	// One full sample plus 10 trailing characters: the tail is shorter
	// than one stride and is dropped without an error.
	raw := append(buildFile(1), []byte("2501110000")...)

	result, err := Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(result.Samples) != 1 {
		t.Errorf("len(Samples) = %d, want 1", len(result.Samples))
	}
	if len(result.Errors) != 0 {
		t.Errorf("len(Errors) = %d, want 0", len(result.Errors))
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("  \r\n \n ")} {
		result, err := Decode(context.Background(), raw)
		if result != nil {
			t.Errorf("Decode(%q) returned a result for fatal input", raw)
		}
		var fatal *tacho.FatalInputError
		if !errors.As(err, &fatal) {
			t.Errorf("Decode(%q) error = %v, want FatalInputError", raw, err)
		}
	}
}

func TestDecode_ZeroSamplesIsNotFatal(t *testing.T) {
	// A header with no record stream is well-formed but empty, which is
	// a different condition from fatal input.
	result, err := Decode(context.Background(), []byte(testHeader+testPrefix))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if result == nil {
		t.Fatal("Decode() returned nil result for well-formed input")
	}
	if len(result.Samples) != 0 {
		t.Errorf("len(Samples) = %d, want 0", len(result.Samples))
	}
	if result.Header.Model != "TACHO-X1" {
		t.Errorf("Model = %q, want %q", result.Header.Model, "TACHO-X1")
	}
}

func TestDecode_LineNoiseStripped(t *testing.T) {
	// CR/LF from editors or transfers is removed before slicing; field
	// offsets are position-addressed, not line-addressed.
	clean := buildFile(2)
	noisy := []byte("\r\n" + string(clean[:80]) + "\r\n" + string(clean[80:]) + "\n")

	want, err := Decode(context.Background(), clean)
	if err != nil {
		t.Fatalf("Decode(clean) error: %v", err)
	}
	got, err := Decode(context.Background(), noisy)
	if err != nil {
		t.Fatalf("Decode(noisy) error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("noisy input decoded differently from clean input")
	}
}

func TestDecode_Idempotent(t *testing.T) {
	raw := buildFile(5)
	a, err := Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("first Decode() error: %v", err)
	}
	b, err := Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("second Decode() error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two decodes of the same bytes differ")
	}
}

func TestDecode_ProgressMonotonic(t *testing.T) {
	var calls []int
	opts := Options{
		BatchSize: 10,
		Progress: func(parsed, total int) {
			if total != 35 {
				t.Errorf("total = %d, want 35", total)
			}
			calls = append(calls, parsed)
		},
	}

	result, err := DecodeWithOptions(context.Background(), buildFile(35), opts)
	if err != nil {
		t.Fatalf("DecodeWithOptions() error: %v", err)
	}
	if len(result.Samples) != 35 {
		t.Fatalf("len(Samples) = %d, want 35", len(result.Samples))
	}

	if len(calls) == 0 {
		t.Fatal("progress callback never invoked")
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Fatalf("progress went backwards: %v", calls)
		}
	}
	if calls[len(calls)-1] != 35 {
		t.Errorf("final progress = %d, want 35", calls[len(calls)-1])
	}
}

func TestDecode_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{BatchSize: 1}
	result, err := DecodeWithOptions(ctx, buildFile(3), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	// Cancellation is checked at batch boundaries, so the batch decoded
	// before the first checkpoint is still returned.
	if result == nil {
		t.Fatal("canceled decode should return the partial result")
	}
	if len(result.Samples) != 1 {
		t.Errorf("len(Samples) = %d, want 1", len(result.Samples))
	}
}
