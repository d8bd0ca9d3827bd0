// Package charset converts raw drive-recorder bytes into a text buffer.
//
// The recorder writes its logs in EUC-KR (the device's native encoding),
// but files re-saved by desktop tooling frequently arrive as UTF-8. EUC-KR
// is always attempted first; UTF-8 is the fallback when that attempt
// returns a hard error. Undecodable byte runs inside an otherwise valid
// stream come out as replacement characters, which is not an error here.
package charset

import (
	"fmt"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// Decode converts raw file bytes to a string, trying EUC-KR then UTF-8.
// It returns an error only when both conversions fail outright.
func Decode(raw []byte) (string, error) {
	out, err := korean.EUCKR.NewDecoder().Bytes(raw)
	if err == nil {
		return string(out), nil
	}

	out, err2 := unicode.UTF8.NewDecoder().Bytes(raw)
	if err2 == nil {
		return string(out), nil
	}

	return "", fmt.Errorf("decode bytes: euc-kr: %v; utf-8: %w", err, err2)
}
