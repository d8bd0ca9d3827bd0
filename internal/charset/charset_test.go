package charset

import "testing"

func TestDecode_EUCKR(t *testing.T) {
	// "가나" in EUC-KR.
	raw := []byte{0xB0, 0xA1, 0xB3, 0xAA}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got != "가나" {
		t.Errorf("Decode() = %q, want %q", got, "가나")
	}
}

func TestDecode_ASCII(t *testing.T) {
	// ASCII is a subset of both encodings and must pass through intact.
	raw := []byte("TACHO-X1 25011100000000")
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got != string(raw) {
		t.Errorf("Decode() = %q, want %q", got, string(raw))
	}
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) error: %v", err)
	}
	if got != "" {
		t.Errorf("Decode(nil) = %q, want empty", got)
	}
}

func TestDecode_InvalidBytesDoNotFail(t *testing.T) {
	// Stray bytes outside the EUC-KR tables become replacement
	// characters; that is not a decode failure.
	raw := []byte{0xFF, 0xFE, 'A'}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got == "" {
		t.Error("Decode() returned empty output for recoverable input")
	}
}
