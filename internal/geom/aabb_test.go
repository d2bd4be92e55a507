package geom

import (
	"math"
	"testing"
)

func TestNewAABB_NormalizesCorners(t *testing.T) {
	b := NewAABB(Vec3i{X: 4, Y: -2, Z: 9}, Vec3i{X: -1, Y: 3, Z: 2})
	if b.Min != (Vec3i{X: -1, Y: -2, Z: 2}) || b.Max != (Vec3i{X: 4, Y: 3, Z: 9}) {
		t.Fatalf("unexpected box: %+v", b)
	}
	if got := b.Size(); got != (Vec3i{X: 6, Y: 6, Z: 8}) {
		t.Fatalf("size: got %+v", got)
	}
}

func TestAABB_AllVisitsEveryBlockOnce(t *testing.T) {
	b := NewAABB(Vec3i{}, Vec3i{X: 2, Y: 1, Z: 3})
	seen := map[Vec3i]int{}
	for p := range b.All() {
		if !b.Contains(p) {
			t.Fatalf("yielded %+v outside box", p)
		}
		seen[p]++
	}
	if int64(len(seen)) != b.Volume() || b.Volume() != 24 {
		t.Fatalf("visited %d distinct blocks, volume %d", len(seen), b.Volume())
	}
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("%+v visited %d times", p, n)
		}
	}
}

func TestAABB_AllIsRestartable(t *testing.T) {
	b := NewAABB(Vec3i{X: 1, Y: 1, Z: 1}, Vec3i{X: 3, Y: 3, Z: 3})
	seq := b.All()
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if first, second := count(), count(); first != 27 || second != 27 {
		t.Fatalf("counts: first=%d second=%d", first, second)
	}
}

func TestAABB_AllStopsEarly(t *testing.T) {
	b := NewAABB(Vec3i{}, Vec3i{X: 9, Y: 9, Z: 9})
	n := 0
	for range b.All() {
		n++
		if n == 5 {
			break
		}
	}
	if n != 5 {
		t.Fatalf("expected early stop at 5, got %d", n)
	}
}

func TestAABB_ClampMaxY(t *testing.T) {
	b := NewAABB(Vec3i{}, Vec3i{X: 10, Y: 300, Z: 10}).ClampMaxY(255)
	if b.Max.Y != 255 {
		t.Fatalf("max y: got %d", b.Max.Y)
	}
	if b.Volume() != 11*256*11 {
		t.Fatalf("volume: got %d", b.Volume())
	}
	if b.ClampMaxY(400).Max.Y != 255 {
		t.Fatalf("clamp must never raise the upper corner")
	}
}

func TestAABB_EmptyYieldsNothing(t *testing.T) {
	b := NewAABB(Vec3i{Y: 10}, Vec3i{X: 3, Y: 20, Z: 3}).ClampMaxY(5)
	if !b.Empty() || b.Volume() != 0 {
		t.Fatalf("expected empty box, got %+v", b)
	}
	for p := range b.All() {
		t.Fatalf("empty box yielded %+v", p)
	}
	if b.Contains(Vec3i{Y: 5}) {
		t.Fatalf("empty box must not contain anything")
	}
}

func TestAABB_AllTerminatesAtIntLimits(t *testing.T) {
	b := AABB{
		Min: Vec3i{X: math.MaxInt - 2, Y: math.MinInt, Z: math.MaxInt},
		Max: Vec3i{X: math.MaxInt, Y: math.MinInt, Z: math.MaxInt},
	}
	var got []int
	for p := range b.All() {
		got = append(got, p.X)
		if len(got) > 3 {
			t.Fatalf("walk did not stop at MaxInt: %v", got)
		}
	}
	if len(got) != 3 || got[2] != math.MaxInt {
		t.Fatalf("unexpected walk: %v", got)
	}
}
