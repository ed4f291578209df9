package engine

import (
	"fmt"
	"log/slog"

	gs "github.com/gridsynth/gridsynth"
)

// CreateTrack adds a track built from the defaults and p, selects it and
// returns its id.
func (e *Engine) CreateTrack(p gs.TrackPatch) string {
	if e.closed {
		return ""
	}
	e.nextTrack++
	t := p.Apply(gs.DefaultTrack())
	t.ID = fmt.Sprintf("track-%d", e.nextTrack)
	if p.Name == nil {
		if p.Category != nil && *p.Category != "" {
			t.Name = gs.DisplayName(*p.Category)
		} else {
			t.Name = fmt.Sprintf("Track %d", len(e.tracks)+1)
		}
	}
	t.Order = len(e.tracks)
	e.tracks = append(e.tracks, t)
	e.selected = t.ID
	e.resync(t.ID)
	e.logger.Debug("track created", slog.String("track", t.ID))
	return t.ID
}

// UpdateTrack merges p into the track and pushes the result to the audio
// graph.
func (e *Engine) UpdateTrack(id string, p gs.TrackPatch) {
	i := e.trackIndex(id)
	if i < 0 {
		e.logger.Warn("update of unknown track", slog.String("track", id))
		return
	}
	e.tracks[i] = p.Apply(e.tracks[i])
	e.resync(id)
}

// DeleteTrack removes the track. Its voices are released; the subgraph is
// torn down once the last of them has finished releasing.
func (e *Engine) DeleteTrack(id string) {
	i := e.trackIndex(id)
	if i < 0 {
		e.logger.Warn("delete of unknown track", slog.String("track", id))
		return
	}
	e.tracks = append(e.tracks[:i], e.tracks[i+1:]...)
	e.renumber()
	if e.selected == id {
		e.selected = ""
		if len(e.tracks) > 0 {
			e.selected = e.tracks[0].ID
		}
	}
	e.releaseTrackVoices(id)
	end := e.now
	for _, v := range e.voices {
		if v.trackID == id && v.endsAt > end {
			end = v.endsAt
		}
	}
	if end == e.now {
		e.teardown(id)
		return
	}
	e.sched.schedule(end, func() { e.teardown(id) })
}

func (e *Engine) teardown(id string) {
	s, ok := e.subgraphs[id]
	if !ok {
		return
	}
	// voices can outlive their release when the clock jumps; never leave
	// one connected to a removed chain
	for h, v := range e.voices {
		if v.trackID == id {
			e.destroyVoice(h)
		}
	}
	s.remove(e.ctx)
	delete(e.subgraphs, id)
}

func (e *Engine) SelectTrack(id string) {
	if e.trackIndex(id) < 0 {
		e.logger.Warn("select of unknown track", slog.String("track", id))
		return
	}
	e.selected = id
}

func (e *Engine) ToggleMute(id string) {
	if i := e.trackIndex(id); i >= 0 {
		e.tracks[i].Muted = !e.tracks[i].Muted
		e.resync(id)
	}
}

func (e *Engine) ToggleSolo(id string) {
	if i := e.trackIndex(id); i >= 0 {
		e.tracks[i].Solo = !e.tracks[i].Solo
		e.resync(id)
	}
}

// ReorderTracks puts the listed tracks first, in the given order, followed by
// the tracks not listed in their previous order. Unknown and repeated ids
// are ignored.
func (e *Engine) ReorderTracks(ids []string) {
	ret := make([]gs.Track, 0, len(e.tracks))
	taken := map[string]bool{}
	for _, id := range ids {
		if i := e.trackIndex(id); i >= 0 && !taken[id] {
			ret = append(ret, e.tracks[i])
			taken[id] = true
		}
	}
	for _, t := range e.tracks {
		if !taken[t.ID] {
			ret = append(ret, t)
		}
	}
	e.tracks = ret
	e.renumber()
}

func (e *Engine) SetTrackStep(id string, step int, active bool) {
	i := e.trackIndex(id)
	if i < 0 {
		e.logger.Warn("step edit of unknown track", slog.String("track", id))
		return
	}
	if step < 0 || step >= gs.MaxSteps {
		e.logger.Warn("step out of range", slog.String("track", id), slog.Int("step", step))
		return
	}
	e.tracks[i].Sequence[step] = active
}

func (e *Engine) ClearTrackSequence(id string) {
	if i := e.trackIndex(id); i >= 0 {
		e.tracks[i].ClearSequence()
	}
}

// ClearAllTracks turns every step of every track off. The tracks themselves
// are kept.
func (e *Engine) ClearAllTracks() {
	for i := range e.tracks {
		e.tracks[i].ClearSequence()
	}
}

// clearRegistry deletes every track at once.
func (e *Engine) clearRegistry() {
	for len(e.tracks) > 0 {
		e.DeleteTrack(e.tracks[len(e.tracks)-1].ID)
	}
}

// Track returns a copy of the track with the given id.
func (e *Engine) Track(id string) (gs.Track, bool) {
	if i := e.trackIndex(id); i >= 0 {
		return e.tracks[i], true
	}
	return gs.Track{}, false
}

func (e *Engine) trackIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, t := range e.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) renumber() {
	for i := range e.tracks {
		e.tracks[i].Order = i
	}
}
