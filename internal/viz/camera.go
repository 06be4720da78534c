package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/nbody/internal/physics"
)

// Camera projects body positions onto the canvas. It rotates about Center,
// scales so Extent world units span half the shorter canvas side, and
// applies a weak perspective along the rotated z axis.
type Camera struct {
	Center           mgl64.Vec3
	Extent           float64
	RotX, RotY, RotZ float64
	Zoom             float64
}

func NewCamera() *Camera {
	return &Camera{Extent: 1, Zoom: 1}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) RotateZ(a float64) { c.RotZ += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(50, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.02, c.Zoom/1.2) }

func (c *Camera) ResetView() {
	c.RotX, c.RotY, c.RotZ = 0, 0, 0
	c.Zoom = 1
}

// Fit centres the camera on the first n bodies and sizes Extent to the
// farthest one. Non-finite positions are ignored.
func (c *Camera) Fit(b physics.Bodies, n int) {
	var sum mgl64.Vec3
	count := 0
	for i := 0; i < n; i++ {
		p, ok := position(b, i)
		if !ok {
			continue
		}
		sum = sum.Add(p)
		count++
	}
	if count == 0 {
		c.Center, c.Extent = mgl64.Vec3{}, 1
		return
	}
	c.Center = sum.Mul(1 / float64(count))

	extent := 0.0
	for i := 0; i < n; i++ {
		if p, ok := position(b, i); ok {
			extent = math.Max(extent, p.Sub(c.Center).Len())
		}
	}
	if extent == 0 {
		extent = 1
	}
	c.Extent = extent * 1.1
}

func (c *Camera) rotation() mgl64.Mat3 {
	return mgl64.Rotate3DZ(c.RotZ).Mul3(mgl64.Rotate3DY(c.RotY)).Mul3(mgl64.Rotate3DX(c.RotX))
}

// Project maps p to sub-pixel coordinates on a sw x sh canvas. The depth
// is the rotated z in units of Extent; visible is false off-screen.
func (c *Camera) Project(p mgl64.Vec3, sw, sh int) (x, y int, depth float64, visible bool) {
	rel := c.rotation().Mul3x1(p.Sub(c.Center)).Mul(c.Zoom / c.Extent)
	// camera sits at z = 4 extents in front of the centre
	const dist = 4.0
	if rel.Z() >= dist-0.1 {
		return 0, 0, rel.Z(), false
	}
	persp := dist / (dist - rel.Z())

	half := float64(min(sw, sh)) / 2
	x = int(math.Round(rel.X()*persp*half)) + sw/2
	y = int(math.Round(-rel.Y()*persp*half)) + sh/2
	return x, y, rel.Z(), x >= 0 && x < sw && y >= 0 && y < sh
}

func position(b physics.Bodies, i int) (mgl64.Vec3, bool) {
	x, y, z := b.Position(i)
	v := mgl64.Vec3{float64(x), float64(y), float64(z)}
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return v, false
		}
	}
	return v, true
}
