package engine

import (
	"log/slog"
	"math/rand"
	"sort"
	"time"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/graph"
)

type (
	// Engine is the synthesis and sequencing engine: the track registry, the
	// master bus, the voices, the sequencer and the arpeggiator.
	//
	// An Engine is not safe for concurrent use. All timing is expressed as
	// actions on an internal scheduler, run by Advance; no method ever
	// blocks. Use a Runner to drive an Engine from several goroutines.
	Engine struct {
		device Device
		logger *slog.Logger
		rand   *rand.Rand
		onNote func(NoteEvent)

		ctx *graph.Context
		bus *bus

		globals   gs.Globals
		master    gs.MasterEffects
		transport gs.Transport
		arp       arpeggiator
		sustain   bool
		sustained []float64

		tracks    []gs.Track
		selected  string
		nextTrack int
		subgraphs map[string]*subgraph

		voices     map[uint64]*voice
		nextHandle uint64

		sched       *scheduler
		now         time.Duration
		seqTick     eventID
		progression []eventID
		closed      bool
	}

	// Device provides the audio graph the engine plays into. Context returns
	// nil while the device is not ready; Resume tries to make it ready. When
	// the device hands out a context with a new generation, everything built
	// against the old one is rebuilt.
	Device interface {
		Context() *graph.Context
		Resume() error
	}

	// NoteEvent is reported to the note observer whenever a voice starts
	// (On) or is released.
	NoteEvent struct {
		On        bool
		Frequency float64
		TrackID   string
		Handle    uint64
	}
)

// New returns an engine with the default globals, master effects and
// transport, and no tracks. A nil logger means slog.Default().
func New(device Device, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		device:    device,
		logger:    logger,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		globals:   gs.DefaultGlobals(),
		master:    gs.DefaultMasterEffects(),
		transport: gs.DefaultTransport(),
		arp:       arpeggiator{mode: gs.ArpOff, rate: gs.DefaultArpRate, dir: 1},
		subgraphs: map[string]*subgraph{},
		voices:    map[uint64]*voice{},
		sched:     newScheduler(),
	}
}

// SetRand replaces the random source of the random arpeggiator mode.
func (e *Engine) SetRand(r *rand.Rand) {
	if r != nil {
		e.rand = r
	}
}

// SetNoteObserver installs a function called on every voice start and
// release. Pass nil to remove it.
func (e *Engine) SetNoteObserver(f func(NoteEvent)) {
	e.onNote = f
}

// Now is the time of the engine's virtual clock.
func (e *Engine) Now() time.Duration { return e.now }

// Advance runs every scheduled action due at or before now, in time order,
// and moves the clock to now. The clock never goes backwards.
func (e *Engine) Advance(now time.Duration) {
	for {
		ev := e.sched.popDue(now)
		if ev == nil {
			break
		}
		if ev.at > e.now {
			e.now = ev.at
		}
		ev.fn()
	}
	if now > e.now {
		e.now = now
	}
}

// NextEvent returns the time of the earliest scheduled action.
func (e *Engine) NextEvent() (time.Duration, bool) {
	if e.sched.len() == 0 {
		return 0, false
	}
	return e.sched.events[0].at, true
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() gs.Snapshot {
	s := gs.Snapshot{
		Tracks:          e.tracks,
		SelectedTrackID: e.selected,
		Transport:       e.transport,
		Arpeggiator: gs.ArpState{
			Mode:  e.arp.mode,
			Rate:  e.arp.rate,
			Held:  e.arp.held,
			Index: e.arp.index,
		},
		Sustain:       e.sustain,
		Globals:       e.globals,
		MasterEffects: e.master,
	}
	for _, v := range e.voiceList() {
		s.Voices = append(s.Voices, gs.VoiceInfo{
			Handle:     v.handle,
			Frequency:  v.freq,
			TrackID:    v.trackID,
			TargetGain: v.target,
			Released:   v.released,
		})
	}
	if e.ctx != nil {
		s.OutputPeak = e.ctx.Peak()
	}
	return s.Copy()
}

// Close stops everything and tears the graph down. The engine ignores
// every operation afterwards.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.StopSequencer()
	e.SetArpeggiatorMode(gs.ArpOff)
	e.StopAllVoices()
	e.sched = newScheduler()
	e.progression = nil
	if e.ctx != nil {
		for id, sg := range e.subgraphs {
			sg.remove(e.ctx)
			delete(e.subgraphs, id)
		}
		if e.bus != nil {
			e.bus.remove(e.ctx)
		}
	}
	e.bus = nil
	e.closed = true
	e.logger.Debug("engine closed")
}

// audio returns the live graph, resuming the device if it is not ready. It
// returns nil if the device cannot be made ready.
func (e *Engine) audio() *graph.Context {
	if e.closed || e.device == nil {
		return nil
	}
	if e.live() == nil {
		if err := e.device.Resume(); err != nil {
			e.logger.Warn("audio device not ready", slog.Any("error", err))
			return nil
		}
	}
	return e.live()
}

// live returns the device's graph without resuming the device, rebinding
// the master bus when the device has moved to a new generation.
func (e *Engine) live() *graph.Context {
	if e.closed || e.device == nil {
		return nil
	}
	ctx := e.device.Context()
	if ctx == nil {
		return nil
	}
	if e.ctx == nil || e.ctx.Generation() != ctx.Generation() {
		e.rebind(ctx)
	}
	return ctx
}

// rebind switches to a new graph context. Voices of the old context are
// gone with it; the master bus and the track subgraphs are rebuilt.
func (e *Engine) rebind(ctx *graph.Context) {
	if e.ctx != nil {
		e.logger.Info("audio context changed, rebuilding graph",
			slog.Uint64("from", e.ctx.Generation()), slog.Uint64("to", ctx.Generation()))
	}
	for h, v := range e.voices {
		e.sched.cancel(v.destroy)
		delete(e.voices, h)
	}
	e.ctx = ctx
	e.bus = newBus(ctx)
	e.bus.sync(e.master)
	for _, t := range e.tracks {
		e.ensureSubgraph(t)
	}
}

func (e *Engine) voiceList() []*voice {
	ret := make([]*voice, 0, len(e.voices))
	for _, v := range e.voices {
		ret = append(ret, v)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].handle < ret[j].handle })
	return ret
}

func (e *Engine) notify(ev NoteEvent) {
	if e.onNote != nil {
		e.onNote(ev)
	}
}
