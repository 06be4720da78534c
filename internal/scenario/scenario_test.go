package scenario

import (
	"math"
	"slices"
	"testing"
)

func TestRandomDeterministicAcrossWorkers(t *testing.T) {
	const n = 3*randomChunk + 17
	ref := Random(n, 42, 1)

	for _, workers := range []int{2, 4, 16} {
		got := Random(n, 42, workers)
		if !slices.Equal(ref.Positions, got.Positions) {
			t.Fatalf("workers=%d: positions differ", workers)
		}
	}

	other := Random(n, 43, 1)
	if slices.Equal(ref.Positions, other.Positions) {
		t.Error("different seeds produced identical positions")
	}
}

func TestRandomBounds(t *testing.T) {
	bodies := Random(5000, 7, 0)
	for i := 0; i < bodies.Len(); i++ {
		if bodies.Masses[i] != 1 {
			t.Fatalf("mass[%d] = %v", i, bodies.Masses[i])
		}
		x, y, z := bodies.Position(i)
		for _, c := range []float32{x, y} {
			if c < -0.25 || c >= 0.251 {
				t.Fatalf("body %d coordinate %v out of range", i, c)
			}
		}
		if z != 0 {
			t.Fatalf("body %d z = %v", i, z)
		}
		vx, vy, vz := bodies.Velocity(i)
		if vx != 0 || vy != 0 || vz != 0 {
			t.Fatalf("body %d not at rest", i)
		}
	}
}

func TestSolar(t *testing.T) {
	for n := 0; n <= 3; n++ {
		bodies, err := Solar(n)
		if err != nil {
			t.Fatal(err)
		}
		if bodies.Len() != n {
			t.Errorf("Solar(%d) has %d bodies", n, bodies.Len())
		}
	}
	if _, err := Solar(4); err == nil {
		t.Error("expected error for 4 bodies")
	}

	pair, err := SolarBodies("Sun", "mars")
	if err != nil {
		t.Fatal(err)
	}
	if pair.Masses[1] != float32(641690892138501.5) {
		t.Errorf("mars mass = %v", pair.Masses[1])
	}
	if _, err := SolarBodies("pluto"); err == nil {
		t.Error("expected error for unknown body")
	}
}

func TestRing(t *testing.T) {
	bodies, err := Ring(8, 1e9, 1e24)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < bodies.Len(); i++ {
		x, y, _ := bodies.Position(i)
		r := math.Hypot(float64(x), float64(y))
		if math.Abs(r-1e9)/1e9 > 1e-6 {
			t.Errorf("body %d radius %v", i, r)
		}
		vx, vy, _ := bodies.Velocity(i)
		// tangential: position and velocity are orthogonal
		dot := float64(x)*float64(vx) + float64(y)*float64(vy)
		if math.Abs(dot) > 1e-3*r*math.Hypot(float64(vx), float64(vy)) {
			t.Errorf("body %d velocity not tangential", i)
		}
	}

	if _, err := Ring(4, 0, 1); err == nil {
		t.Error("expected error for zero radius")
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantErr bool
	}{
		{"random", 10, false},
		{"solar", 2, false},
		{"ring", 6, false},
		{"galaxy", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies, err := Generate(tt.name, tt.n, Options{Seed: 1, Radius: 1, Mass: 1})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && bodies.Len() != tt.n {
				t.Errorf("got %d bodies", bodies.Len())
			}
		})
	}

	if got := List(); !slices.Equal(got, []string{"random", "ring", "solar"}) {
		t.Errorf("List() = %v", got)
	}
}
