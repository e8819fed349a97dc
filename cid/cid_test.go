package cid

import "testing"

func TestHexRoundTrip(t *testing.T) {
	var c CID
	for i := range c {
		c[i] = byte(i)
	}
	hex := c.String()
	if len(hex) != Size*2 {
		t.Fatalf("expected %d hex chars, got %d", Size*2, len(hex))
	}
	got, err := ParseCID(hex)
	if err != nil {
		t.Fatalf("ParseCID: %v", err)
	}
	if got != c {
		t.Fatalf("round trip mismatch: got %v want %v", got, c)
	}
}

func TestParseCIDRejectsBadLength(t *testing.T) {
	if _, err := ParseCID("deadbeef"); err == nil {
		t.Fatalf("expected error for short hex string")
	}
}

func TestComputeStructuredIdempotent(t *testing.T) {
	h := NewHasher(AlgoSHA256)
	data := map[string]any{"labels": []any{"User"}, "properties": map[string]any{"name": "Alice"}}
	c1, err := h.ComputeStructured(data)
	if err != nil {
		t.Fatalf("ComputeStructured: %v", err)
	}
	c2, err := h.ComputeStructured(data)
	if err != nil {
		t.Fatalf("ComputeStructured: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("same data produced different CIDs: %s vs %s", c1, c2)
	}
}

func TestComputeStructuredKeyOrderInvariant(t *testing.T) {
	h := NewHasher(AlgoSHA256)
	a := map[string]any{"a": 1, "b": 2, "c": 3}
	b := map[string]any{"c": 3, "b": 2, "a": 1}
	ca, err := h.ComputeStructured(a)
	if err != nil {
		t.Fatalf("ComputeStructured: %v", err)
	}
	cb, err := h.ComputeStructured(b)
	if err != nil {
		t.Fatalf("ComputeStructured: %v", err)
	}
	if ca != cb {
		t.Fatalf("key order should not affect CID: %s vs %s", ca, cb)
	}
}

func TestAlgorithmsDiffer(t *testing.T) {
	data := map[string]any{"x": 1}
	sha, err := NewHasher(AlgoSHA256).ComputeStructured(data)
	if err != nil {
		t.Fatalf("sha256: %v", err)
	}
	blake, err := NewHasher(AlgoBLAKE3).ComputeStructured(data)
	if err != nil {
		t.Fatalf("blake3: %v", err)
	}
	if sha == blake {
		t.Fatalf("different algorithms should produce different CIDs")
	}
}

func TestLessAndCompareTotalOrder(t *testing.T) {
	a := CID{0, 0, 0}
	b := CID{0, 0, 1}
	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
	if b.Less(a) {
		t.Fatalf("expected !(b < a)")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected a == a")
	}
}

func TestParseAlgorithm(t *testing.T) {
	cases := map[string]Algorithm{
		"":          AlgoSHA256,
		"sha2_256":  AlgoSHA256,
		"blake3":    AlgoBLAKE3,
	}
	for in, want := range cases {
		got, err := ParseAlgorithm(in)
		if err != nil {
			t.Fatalf("ParseAlgorithm(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseAlgorithm(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseAlgorithm("md5"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
}
