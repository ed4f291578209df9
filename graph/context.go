package graph

import (
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
)

type (
	// Context owns a set of nodes and the connections between them, and
	// renders the nodes reachable from its destination.
	//
	// Building the graph (creating, connecting and removing nodes, writing
	// params) is done from a single control goroutine. Render is called from
	// a single render goroutine, typically the audio device's. The two only
	// share the frame counter, the peak meter and the render plan, all
	// handed over through atomics, so Render never blocks on the control
	// side.
	Context struct {
		sampleRate int
		generation uint64

		nextID int
		nodes  map[int]Node
		inputs map[int][]int // node id -> ids of the nodes connected to it
		dest   *destination

		plan   atomic.Pointer[plan]
		frames atomic.Uint64
		peak   atomic.Uint32
	}

	// plan is an immutable rendering order of the nodes reachable from the
	// destination. Each plan owns its buffers.
	plan struct {
		steps   []step
		out     int
		scratch Block
	}

	step struct {
		node   Node
		inputs []int // indices into plan.steps
		buf    Block
	}

	// destination is the root of the graph; its output is what Render
	// returns.
	destination struct {
		base
	}
)

// peakRelease is how long the peak meter takes to fall by 60 dB.
const peakRelease = 1.5

// NewContext returns an empty graph rendering at sampleRate. generation
// identifies the context: nodes built against one context must never be
// used with another, and callers use the generation to notice that.
func NewContext(sampleRate int, generation uint64) *Context {
	c := &Context{
		sampleRate: sampleRate,
		generation: generation,
		nodes:      map[int]Node{},
		inputs:     map[int][]int{},
	}
	c.dest = &destination{base: c.newBase()}
	c.nodes[c.dest.id] = c.dest
	c.rebuild()
	return c
}

func (c *Context) SampleRate() int    { return c.sampleRate }
func (c *Context) Generation() uint64 { return c.generation }

// CurrentTime is the time of the next frame to be rendered, in seconds.
func (c *Context) CurrentTime() float64 {
	return float64(c.frames.Load()) / float64(c.sampleRate)
}

// Destination is the node whose input is rendered.
func (c *Context) Destination() Node { return c.dest }

// Peak is the decaying absolute peak of the rendered output.
func (c *Context) Peak() float32 {
	return math.Float32frombits(c.peak.Load())
}

// NodeCount is the number of nodes in the context, including the
// destination.
func (c *Context) NodeCount() int { return len(c.nodes) }

// EdgeCount is the number of connections between nodes.
func (c *Context) EdgeCount() int {
	n := 0
	for _, in := range c.inputs {
		n += len(in)
	}
	return n
}

// Connected reports if the output of from is connected to to.
func (c *Context) Connected(from, to Node) bool {
	for _, id := range c.inputs[to.ID()] {
		if id == from.ID() {
			return true
		}
	}
	return false
}

// Connect routes the output of from into to. Connecting twice is a no-op;
// so is a connection that would close a cycle or involves a node of another
// context.
func (c *Context) Connect(from, to Node) {
	if from.Context() != c || to.Context() != c || c.Connected(from, to) {
		return
	}
	if from.ID() == to.ID() || c.reaches(to.ID(), from.ID()) {
		return
	}
	c.inputs[to.ID()] = append(c.inputs[to.ID()], from.ID())
	c.rebuild()
}

// Disconnect removes every connection from and to n.
func (c *Context) Disconnect(n Node) {
	if n.Context() != c {
		return
	}
	c.disconnect(n.ID())
	c.rebuild()
}

// Remove disconnects n and forgets it. The destination cannot be removed.
func (c *Context) Remove(nodes ...Node) {
	for _, n := range nodes {
		if n == nil || n.Context() != c || n.ID() == c.dest.id {
			continue
		}
		c.disconnect(n.ID())
		delete(c.nodes, n.ID())
	}
	c.rebuild()
}

func (c *Context) disconnect(id int) {
	delete(c.inputs, id)
	for to, in := range c.inputs {
		out := in[:0]
		for _, from := range in {
			if from != id {
				out = append(out, from)
			}
		}
		if len(out) == 0 {
			delete(c.inputs, to)
		} else {
			c.inputs[to] = out
		}
	}
}

// reaches reports if the output of node from flows, directly or not, into
// node to.
func (c *Context) reaches(from, to int) bool {
	seen := map[int]bool{}
	var visit func(id int) bool
	visit = func(id int) bool {
		if id == from {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		for _, in := range c.inputs[id] {
			if visit(in) {
				return true
			}
		}
		return false
	}
	return visit(to)
}

func (c *Context) newBase() base {
	c.nextID++
	return base{id: c.nextID, ctx: c}
}

func (c *Context) add(n Node) {
	c.nodes[n.ID()] = n
}

// rebuild publishes a new render plan: the nodes reachable from the
// destination, in an order where every node comes after its inputs.
func (c *Context) rebuild() {
	p := &plan{scratch: newBlock(BlockSize)}
	index := map[int]int{}
	var visit func(id int)
	visit = func(id int) {
		if _, ok := index[id]; ok {
			return
		}
		index[id] = -1
		var ins []int
		for _, in := range c.inputs[id] {
			visit(in)
			ins = append(ins, index[in])
		}
		index[id] = len(p.steps)
		p.steps = append(p.steps, step{node: c.nodes[id], inputs: ins, buf: newBlock(BlockSize)})
	}
	visit(c.dest.id)
	p.out = index[c.dest.id]
	c.plan.Store(p)
}

// Render fills out with the next len(out) stereo frames and advances the
// context time.
func (c *Context) Render(out [][2]float32) {
	p := c.plan.Load()
	decay := float32(math.Pow(1e-3, float64(BlockSize)/(peakRelease*float64(c.sampleRate))))
	for len(out) > 0 {
		n := min(len(out), BlockSize)
		t0 := c.CurrentTime()
		for i := range p.steps {
			s := &p.steps[i]
			in := p.scratch.slice(n)
			in.clear()
			for _, j := range s.inputs {
				src := p.steps[j].buf
				vek32.Add_Inplace(in[0], src[0][:n])
				vek32.Add_Inplace(in[1], src[1][:n])
			}
			s.node.process(t0, in, s.buf.slice(n))
		}
		res := p.steps[p.out].buf
		for i := range out[:n] {
			out[i] = [2]float32{res[0][i], res[1][i]}
		}
		// the scratch is free again once every step has run
		meter := p.scratch.slice(n)
		meter.copyFrom(res.slice(n))
		vek32.Abs_Inplace(meter[0])
		vek32.Abs_Inplace(meter[1])
		peak := max(vek32.Max(meter[0]), vek32.Max(meter[1]), c.Peak()*decay)
		c.peak.Store(math.Float32bits(peak))
		c.frames.Add(uint64(n))
		out = out[n:]
	}
}

func (d *destination) process(t0 float64, in, out Block) {
	out.copyFrom(in)
}
