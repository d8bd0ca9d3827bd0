// Package decoder is the top-level drive-log decode driver.
//
// It owns the raw buffer for the duration of one call: character
// decoding, line-terminator cleanup, the header/prefix/sample phases, and
// the accumulation of per-record errors. Decoding never aborts on a bad
// record — a malformed sample is recorded and skipped — but an empty or
// undecodable input fails the whole call with a FatalInputError.
package decoder

import (
	"context"
	"strings"

	"tacho_parser/internal/assemble"
	"tacho_parser/internal/charset"
	"tacho_parser/internal/schema"
	"tacho_parser/internal/tacho"
)

// DefaultBatchSize is how many samples are decoded between checkpoints.
const DefaultBatchSize = 100

// Progress receives decode checkpoints: samples parsed so far and the
// total number of full strides the buffer holds. It is called from the
// decoding goroutine; implementations should return quickly.
type Progress func(parsed, total int)

// Options tunes one decode run. The zero value uses DefaultBatchSize and
// reports no progress.
type Options struct {
	// BatchSize is the number of samples decoded between checkpoints
	// (progress callback + cancellation check). Values < 1 mean
	// DefaultBatchSize.
	BatchSize int
	// Progress, when non-nil, is invoked at every checkpoint and once
	// after the final sample.
	Progress Progress
}

// Decode runs a full decode with default options.
func Decode(ctx context.Context, raw []byte) (*tacho.DecodeResult, error) {
	return DecodeWithOptions(ctx, raw, Options{})
}

// DecodeWithOptions decodes one uploaded drive-recorder file.
//
// On fatal input (empty buffer, undecodable bytes) it returns a nil
// result and a *tacho.FatalInputError. Otherwise it always returns a
// result: zero recovered samples with a nil error means the input was
// well-formed but the record stream was empty, distinct from the fatal
// case. If ctx is canceled mid-decode, the samples decoded so far are
// returned together with the context error.
func DecodeWithOptions(ctx context.Context, raw []byte, opts Options) (*tacho.DecodeResult, error) {
	batch := opts.BatchSize
	if batch < 1 {
		batch = DefaultBatchSize
	}

	text, err := charset.Decode(raw)
	if err != nil {
		return nil, &tacho.FatalInputError{Reason: "undecodable byte stream", Err: err}
	}

	// The format has no line breaks inside a record run; any CR/LF is
	// editor noise and stripping it does not move field offsets.
	text = strings.NewReplacer("\r", "", "\n", "").Replace(text)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &tacho.FatalInputError{Reason: "empty input"}
	}

	buf := []rune(text)
	result := &tacho.DecodeResult{}

	header, cursor, err := assemble.Header(buf)
	if err != nil {
		result.Errors = append(result.Errors, &tacho.DecodeError{
			Offset: 0, Index: 0, Err: err, Reason: err.Error(),
		})
	}
	result.Header = header

	daily, cumulative, cursor, err := assemble.DistancePrefix(buf, cursor)
	if err != nil {
		result.Errors = append(result.Errors, &tacho.DecodeError{
			Offset: schema.HeaderStride, Index: 0, Err: err, Reason: err.Error(),
		})
	}

	// Total full strides in the buffer; trailing characters shorter than
	// one stride are dropped, so this is also the maximum sample count.
	total := (len(buf) - cursor) / schema.SampleStride
	if total < 0 {
		total = 0
	}

	index := 1   // Next 1-based index among successfully parsed samples.
	attempt := 0 // Records attempted, failures included.
	for len(buf)-cursor >= schema.SampleStride {
		offset := cursor
		attempt++

		sample, next, err := assemble.Sample(buf, cursor, index)
		cursor = next
		if err != nil {
			result.Errors = append(result.Errors, &tacho.DecodeError{
				Offset: offset, Index: attempt, Err: err, Reason: err.Error(),
			})
			continue
		}

		if index == 1 {
			sample.DailyDistance = daily
			sample.CumulativeDistance = cumulative
		}
		result.Samples = append(result.Samples, sample)
		index++

		if attempt%batch == 0 {
			if opts.Progress != nil {
				opts.Progress(len(result.Samples), total)
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
	}

	if opts.Progress != nil {
		opts.Progress(len(result.Samples), total)
	}
	return result, nil
}
