// Package scenario builds initial body collections.
package scenario

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/san-kum/nbody/internal/parallel"
	"github.com/san-kum/nbody/internal/physics"
)

// Options tune the generators. Unused fields are ignored by a generator.
type Options struct {
	Seed    uint64
	Workers int
	Radius  float64
	Mass    float64
}

type Generator func(n int, opts Options) (physics.Bodies, error)

var generators = map[string]Generator{
	"random": func(n int, opts Options) (physics.Bodies, error) {
		if n < 0 {
			return physics.Bodies{}, fmt.Errorf("scenario: negative body count %d", n)
		}
		return Random(n, opts.Seed, opts.Workers), nil
	},
	"solar": func(n int, _ Options) (physics.Bodies, error) {
		return Solar(n)
	},
	"ring": func(n int, opts Options) (physics.Bodies, error) {
		return Ring(n, opts.Radius, opts.Mass)
	},
}

// Generate dispatches to the named generator.
func Generate(name string, n int, opts Options) (physics.Bodies, error) {
	gen, ok := generators[name]
	if !ok {
		return physics.Bodies{}, fmt.Errorf("scenario: unknown scenario: %s", name)
	}
	return gen(n, opts)
}

func List() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const randomChunk = 4096

// Random places n unit masses at rest, uniformly in [-0.25, 0.251) on x and
// y with z = 0. Each fixed-size chunk draws from its own generator seeded
// from (seed, chunk), so the result does not depend on workers.
func Random(n int, seed uint64, workers int) physics.Bodies {
	bodies := physics.NewBodies(n)
	chunks := (n + randomChunk - 1) / randomChunk

	parallel.For(chunks, parallel.Workers(chunks, workers), func(start, end int) {
		for c := start; c < end; c++ {
			rng := rand.New(rand.NewPCG(seed, uint64(c)))
			for i := c * randomChunk; i < min((c+1)*randomChunk, n); i++ {
				bodies.Masses[i] = 1
				bodies.Positions[3*i] = uniform(rng, -0.25, 0.251)
				bodies.Positions[3*i+1] = uniform(rng, -0.25, 0.251)
			}
		}
	})
	return bodies
}

func uniform(rng *rand.Rand, lo, hi float64) float32 {
	v := float32(lo + rng.Float64()*(hi-lo))
	// rounding to float32 may land on hi
	if v >= float32(hi) {
		v = math.Nextafter32(float32(hi), float32(lo))
	}
	return v
}

// Ring spaces n equal masses on a circle in the xy plane and gives each the
// tangential speed of a circular orbit around the common centre.
func Ring(n int, radius, mass float64) (physics.Bodies, error) {
	if n < 0 {
		return physics.Bodies{}, fmt.Errorf("scenario: negative body count %d", n)
	}
	if radius <= 0 || mass <= 0 {
		return physics.Bodies{}, fmt.Errorf("scenario: ring needs positive radius and mass, got %g and %g", radius, mass)
	}

	// inward pull on one body from the other n-1 on a ring
	var sum float64
	for k := 1; k < n; k++ {
		sum += 1 / (4 * math.Sin(math.Pi*float64(k)/float64(n)))
	}
	speed := math.Sqrt(physics.GravitationalConstant * mass * sum / radius)

	bodies := physics.NewBodies(n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		sin, cos := math.Sincos(angle)
		bodies.Masses[i] = float32(mass)
		bodies.Positions[3*i] = float32(radius * cos)
		bodies.Positions[3*i+1] = float32(radius * sin)
		bodies.Velocities[3*i] = float32(-speed * sin)
		bodies.Velocities[3*i+1] = float32(speed * cos)
	}
	return bodies, nil
}
