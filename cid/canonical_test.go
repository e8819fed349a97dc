package cid

import "testing"

func TestCanonicalizeSortsKeys(t *testing.T) {
	in := map[string]any{"c": 3, "a": 1, "b": 2}
	out, err := Canonicalize(in)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"a":1,"b":2,"c":3}`
	if string(out) != want {
		t.Fatalf("got %s want %s", out, want)
	}
}

func TestCanonicalizeNested(t *testing.T) {
	in := map[string]any{
		"labels": []any{"User", "Admin"},
		"props":  map[string]any{"z": true, "a": nil},
	}
	out, err := Canonicalize(in)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"labels":["User","Admin"],"props":{"a":null,"z":true}}`
	if string(out) != want {
		t.Fatalf("got %s want %s", out, want)
	}
}

func TestCanonicalizeIsDeterministicAcrossKeyOrder(t *testing.T) {
	a := map[string]any{"x": 1, "y": 2}
	b := map[string]any{"y": 2, "x": 1}
	outA, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize a: %v", err)
	}
	outB, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Canonicalize b: %v", err)
	}
	if string(outA) != string(outB) {
		t.Fatalf("canonical forms differ: %s vs %s", outA, outB)
	}
}
