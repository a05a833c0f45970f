package sig

import "testing"

func TestEqualPacked(t *testing.T) {
	a := Signature{Packed: true, Bits: 0b1010}
	b := Signature{Packed: true, Bits: 0b1010}
	c := Signature{Packed: true, Bits: 0b1011}
	if !a.Equal(b) {
		t.Fatal("expected equal packed signatures to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different packed signatures to compare unequal")
	}
}

func TestEqualSym(t *testing.T) {
	a := Signature{Sym: []int64{1, 2, 3}}
	b := Signature{Sym: []int64{1, 2, 3}}
	c := Signature{Sym: []int64{1, 2, 4}}
	if !a.Equal(b) {
		t.Fatal("expected equal symbol signatures to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different symbol signatures to compare unequal")
	}
	if a.Equal(Signature{Packed: true, Bits: 0}) {
		t.Fatal("packed and symbol signatures must never compare equal")
	}
}

func TestHash64Stable(t *testing.T) {
	s := Signature{Sym: []int64{5, -3, 100}}
	if s.Hash64() != s.Hash64() {
		t.Fatal("Hash64 must be stable across calls")
	}
}

func TestFlip(t *testing.T) {
	s := Signature{Packed: true, Bits: 0b0110}
	f := s.Flip(0b0011)
	if f.Bits != 0b0101 {
		t.Fatalf("Flip(0b0011) on 0b0110 = %b, want 0b0101", f.Bits)
	}
	if s.Bits != 0b0110 {
		t.Fatal("Flip mutated the receiver")
	}
}

func TestWithSym(t *testing.T) {
	s := Signature{Sym: []int64{1, 2, 3}}
	w := s.WithSym(1, 99)
	if w.Sym[1] != 99 || s.Sym[1] != 2 {
		t.Fatal("WithSym must not mutate the receiver")
	}
	if w.Sym[0] != 1 || w.Sym[2] != 3 {
		t.Fatal("WithSym changed an untouched index")
	}
}
