package codec

import (
	"bytes"
	"sort"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff},
		[]byte("hello"),
		[]byte("person:friendship"),
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
	}
	for _, c := range cases {
		encoded := Encode(c)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%x) error: %v", c, err)
		}
		if !bytes.Equal(decoded, c) {
			t.Errorf("round trip mismatch for %x: got %x", c, decoded)
		}
	}
}

func TestSortOrderPreserved(t *testing.T) {
	inputs := [][]byte{
		{0x00, 0x00},
		{0x00, 0x01},
		{0x01, 0x00},
		{0x01, 0xff},
		{0x02},
		{0xff, 0xff, 0xff, 0xff},
	}
	sort.Slice(inputs, func(i, j int) bool { return bytes.Compare(inputs[i], inputs[j]) < 0 })

	encoded := make([]string, len(inputs))
	for i, in := range inputs {
		encoded[i] = Encode(in)
	}

	sorted := make([]string, len(encoded))
	copy(sorted, encoded)
	sort.Strings(sorted)

	for i := range encoded {
		if encoded[i] != sorted[i] {
			t.Fatalf("sort order not preserved: encoded %v, sorted %v", encoded, sorted)
		}
	}
}

func TestDecodeInvalidCharacter(t *testing.T) {
	if _, err := Decode("hello world"); err == nil {
		t.Fatal("expected error for input containing a space")
	}
}
