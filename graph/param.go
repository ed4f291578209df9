package graph

import (
	"sort"
	"sync/atomic"
)

type (
	// Param is an automatable node parameter. The control goroutine writes
	// it by publishing a new immutable automation curve; the render
	// goroutine only ever loads the curve, so neither side blocks.
	Param struct {
		curve atomic.Pointer[[]Point]
	}

	// Point is one breakpoint of a piecewise linear automation curve. Time
	// is in seconds of context time.
	Point struct {
		Time  float64
		Value float32
	}
)

func newParam(v float32) *Param {
	p := &Param{}
	p.Set(v)
	return p
}

// Set jumps to v immediately, cancelling any automation in flight.
func (p *Param) Set(v float32) {
	p.curve.Store(&[]Point{{Value: v}})
}

// RampTo ramps linearly from the value the parameter has at time from to v,
// reaching v at from+dur.
func (p *Param) RampTo(v float32, from, dur float64) {
	start := p.ValueAt(from)
	if dur <= 0 {
		p.curve.Store(&[]Point{{Time: from, Value: v}})
		return
	}
	p.curve.Store(&[]Point{{Time: from, Value: start}, {Time: from + dur, Value: v}})
}

// Automate replaces the automation with the given breakpoints. The points
// are sorted by time; an empty list is ignored.
func (p *Param) Automate(points ...Point) {
	if len(points) == 0 {
		return
	}
	c := append([]Point(nil), points...)
	sort.SliceStable(c, func(i, j int) bool { return c[i].Time < c[j].Time })
	p.curve.Store(&c)
}

// ValueAt evaluates the automation at time t. Before the first breakpoint
// the value is that of the first breakpoint; after the last one it stays at
// the last value.
func (p *Param) ValueAt(t float64) float32 {
	c := *p.curve.Load()
	if t <= c[0].Time {
		return c[0].Value
	}
	for i := 1; i < len(c); i++ {
		if t < c[i].Time {
			a, b := c[i-1], c[i]
			f := float32((t - a.Time) / (b.Time - a.Time))
			return a.Value + (b.Value-a.Value)*f
		}
	}
	return c[len(c)-1].Value
}

// Target is the value the parameter settles to once its automation is
// over.
func (p *Param) Target() float32 {
	c := *p.curve.Load()
	return c[len(c)-1].Value
}

// End is the time the automation is over.
func (p *Param) End() float64 {
	c := *p.curve.Load()
	return c[len(c)-1].Time
}

// fill writes the parameter values for len(buf) consecutive frames starting
// at t0 into buf, interpolating linearly between the block edges.
func (p *Param) fill(buf []float32, t0, dt float64) (constant bool) {
	v0 := p.ValueAt(t0)
	v1 := p.ValueAt(t0 + dt*float64(len(buf)))
	if v0 == v1 {
		for i := range buf {
			buf[i] = v0
		}
		return true
	}
	step := (v1 - v0) / float32(len(buf))
	for i := range buf {
		buf[i] = v0 + step*float32(i)
	}
	return false
}
