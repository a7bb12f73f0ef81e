package ciops

import "testing"

func TestRNGDeterministic(t *testing.T) {
	seed := int64(42)
	a := NewRNG(&seed)
	b := NewRNG(&seed)
	for i := 0; i < 100; i++ {
		x, y := a.Intn(1000), b.Intn(1000)
		if x != y {
			t.Fatalf("iteration %d: generators seeded alike diverged: %d != %d", i, x, y)
		}
	}
}

func TestRNGIntnRange(t *testing.T) {
	seed := int64(7)
	r := NewRNG(&seed)
	for i := 0; i < 1000; i++ {
		v := r.Intn(5)
		if v < 0 || v >= 5 {
			t.Fatalf("Intn(5) returned out-of-range value %d", v)
		}
	}
}

func TestRNGNilSeedDiffers(t *testing.T) {
	a := NewRNG(nil)
	b := NewRNG(nil)
	// Not a strict guarantee, but wall-clock seeding should not produce
	// the exact same stream across two independently constructed RNGs.
	same := true
	for i := 0; i < 10; i++ {
		if a.Intn(1_000_000) != b.Intn(1_000_000) {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("two nil-seeded RNGs produced identical streams")
	}
}
