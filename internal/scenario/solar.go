package scenario

import (
	"fmt"
	"strings"

	"github.com/san-kum/nbody/internal/physics"
)

// Body is one named point mass in SI units.
type Body struct {
	Name     string
	Mass     float64
	Position [3]float64
	Velocity [3]float64
}

// SolarSystem holds barycentric state vectors from JPL Horizons for
// 2022-05-28 00:00 TDB, in kg, m and m/s.
var SolarSystem = []Body{
	{
		Name:     "sun",
		Mass:     1.988409871326422e+21,
		Position: [3]float64{60764136.34568623e3, 138876778.5691075e3, -7392.035766117275e3},
		Velocity: [3]float64{-26.81358403560408e3, 12.06331415757691e3, 0.000602317650384876e3},
	},
	{
		Name:     "venus",
		Mass:     4867305814842006.0,
		Position: [3]float64{155963686.5097929e3, 86372916.2720451e3, -6221383.90401521e3},
		Velocity: [3]float64{-10.10767195510975e3, 42.58540771322825e3, -0.5443721325972781e3},
	},
	{
		Name:     "mars",
		Mass:     641690892138501.5,
		Position: [3]float64{220994088.6927211e3, 7535624.027122181e3, -6690421.407387457e3},
		Velocity: [3]float64{-10.53562754024867e3, 32.87860971265692e3, 0.03755165281278394e3},
	},
}

// Solar returns the first n bodies of SolarSystem.
func Solar(n int) (physics.Bodies, error) {
	if n < 0 || n > len(SolarSystem) {
		return physics.Bodies{}, fmt.Errorf("scenario: solar supports 0 to %d bodies, got %d", len(SolarSystem), n)
	}
	return FromBodies(SolarSystem[:n]), nil
}

// SolarBodies picks bodies from SolarSystem by name, in argument order.
func SolarBodies(names ...string) (physics.Bodies, error) {
	picked := make([]Body, 0, len(names))
	for _, name := range names {
		b, ok := lookup(name)
		if !ok {
			return physics.Bodies{}, fmt.Errorf("scenario: unknown body: %s", name)
		}
		picked = append(picked, b)
	}
	return FromBodies(picked), nil
}

func lookup(name string) (Body, bool) {
	for _, b := range SolarSystem {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return Body{}, false
}

func FromBodies(list []Body) physics.Bodies {
	bodies := physics.NewBodies(len(list))
	for i, b := range list {
		bodies.Masses[i] = float32(b.Mass)
		for k := 0; k < 3; k++ {
			bodies.Positions[3*i+k] = float32(b.Position[k])
			bodies.Velocities[3*i+k] = float32(b.Velocity[k])
		}
	}
	return bodies
}
