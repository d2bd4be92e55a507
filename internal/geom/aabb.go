package geom

import "iter"

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i {
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// AABB is an axis-aligned box of block positions, inclusive on both corners.
// A box with Max below Min on any axis is empty.
type AABB struct {
	Min Vec3i `json:"min"`
	Max Vec3i `json:"max"`
}

// NewAABB builds the box spanned by two arbitrary corners.
func NewAABB(a, b Vec3i) AABB {
	return AABB{
		Min: Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

func (b AABB) Empty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

func (b AABB) Contains(p Vec3i) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Size returns the number of blocks along each axis.
func (b AABB) Size() Vec3i {
	if b.Empty() {
		return Vec3i{}
	}
	return Vec3i{X: b.Max.X - b.Min.X + 1, Y: b.Max.Y - b.Min.Y + 1, Z: b.Max.Z - b.Min.Z + 1}
}

func (b AABB) Volume() int64 {
	s := b.Size()
	return int64(s.X) * int64(s.Y) * int64(s.Z)
}

// ClampMaxY lowers the upper corner to y if it is above it.
func (b AABB) ClampMaxY(y int) AABB {
	if b.Max.Y > y {
		b.Max.Y = y
	}
	return b
}

// All yields every block position in the box, x fastest, then z, then y.
// The sequence is lazy and can be ranged over any number of times.
// Each axis stops on its last value before incrementing, so corners at the
// limits of int terminate.
func (b AABB) All() iter.Seq[Vec3i] {
	return func(yield func(Vec3i) bool) {
		if b.Empty() {
			return
		}
		for y := b.Min.Y; ; y++ {
			for z := b.Min.Z; ; z++ {
				for x := b.Min.X; ; x++ {
					if !yield(Vec3i{X: x, Y: y, Z: z}) {
						return
					}
					if x == b.Max.X {
						break
					}
				}
				if z == b.Max.Z {
					break
				}
			}
			if y == b.Max.Y {
				break
			}
		}
	}
}
