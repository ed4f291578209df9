package graph

// BlockSize is the number of frames rendered per processing step. Automation
// is evaluated at block edges and interpolated in between.
const BlockSize = 128

type (
	// Block is a planar stereo buffer: Block[0] is the left channel and
	// Block[1] the right one.
	Block [2][]float32

	// Node is a processing unit of the graph. Nodes are created by the
	// Context and are only valid within it; their exported Params can be
	// written from the control goroutine at any time.
	Node interface {
		ID() int
		Context() *Context
		// process renders len(out[0]) frames starting at time t0. in holds
		// the sum of every node connected to this node.
		process(t0 float64, in, out Block)
	}

	base struct {
		id  int
		ctx *Context
	}
)

func (b *base) ID() int           { return b.id }
func (b *base) Context() *Context { return b.ctx }

// dt is the duration of one frame.
func (b *base) dt() float64 { return 1 / float64(b.ctx.sampleRate) }

func newBlock(n int) Block {
	return Block{make([]float32, n), make([]float32, n)}
}

func (b Block) slice(n int) Block {
	return Block{b[0][:n], b[1][:n]}
}

func (b Block) clear() {
	clear(b[0])
	clear(b[1])
}

func (b Block) copyFrom(o Block) {
	copy(b[0], o[0])
	copy(b[1], o[1])
}
