package lfs

import (
	"testing"
)

func TestEncodeDecodeName_roundTrip(t *testing.T) {
	encoded := EncodeName("draft", 32)

	if len(encoded) != 32 {
		t.Fatalf("encoded name field has wrong length: (%d)", len(encoded))
	}

	decoded := DecodeName(encoded)
	if decoded != "draft" {
		t.Fatalf("name did not round-trip: [%s]", decoded)
	}
}

func TestDecodeName_noTrailingNul(t *testing.T) {
	raw := []byte{'a', 'b', 'c'}

	decoded := DecodeName(raw)
	if decoded != "abc" {
		t.Fatalf("name without NUL did not decode correctly: [%s]", decoded)
	}
}

func TestEncodeName_padsToFieldLength(t *testing.T) {
	encoded := EncodeName("hi", 4)

	if len(encoded) != 4 {
		t.Fatalf("encoded name did not honor field length: (%d)", len(encoded))
	}

	if DecodeName(encoded) != "hi" {
		t.Fatalf("short name decoded incorrectly")
	}
}
