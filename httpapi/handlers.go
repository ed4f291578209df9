package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
)

type (
	trackCreated struct {
		ID string `json:"id"`
	}

	stepRequest struct {
		Active bool `json:"active"`
	}

	orderRequest struct {
		IDs []string `json:"ids"`
	}

	bpmRequest struct {
		BPM float64 `json:"bpm"`
	}

	stepsRequest struct {
		Steps int `json:"steps"`
	}

	noteRequest struct {
		Frequency float64 `json:"frequency"`
		TrackID   string  `json:"trackId,omitempty"`
	}

	sustainRequest struct {
		On bool `json:"on"`
	}

	arpRequest struct {
		Mode *gs.ArpMode `json:"mode,omitempty"`
		Rate *float64    `json:"rate,omitempty"`
	}

	presetNames struct {
		Globals      []string `json:"globals"`
		Bundles      []string `json:"bundles"`
		Rhythms      []string `json:"rhythms"`
		Chords       []string `json:"chords"`
		Progressions []string `json:"progressions"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

const maxBodySize = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var p gs.TrackPatch
	if !s.decode(w, r, &p) {
		return
	}
	var id string
	if !s.do(w, r, func(e *engine.Engine) { id = e.CreateTrack(p) }) {
		return
	}
	s.writeJSON(w, http.StatusCreated, trackCreated{ID: id})
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	var t gs.Track
	if !s.withTrack(w, r, func(e *engine.Engine, id string) { t, _ = e.Track(id) }) {
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	var p gs.TrackPatch
	if !s.decode(w, r, &p) {
		return
	}
	var t gs.Track
	if !s.withTrack(w, r, func(e *engine.Engine, id string) {
		e.UpdateTrack(id, p)
		t, _ = e.Track(id)
	}) {
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	if s.withTrack(w, r, (*engine.Engine).DeleteTrack) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleTrackAction runs f on the track named in the URL.
func (s *Server) handleTrackAction(f func(*engine.Engine, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.withTrack(w, r, f) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (s *Server) handleSetStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || step < 0 || step >= gs.MaxSteps {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("step must be an integer in [0, %d)", gs.MaxSteps))
		return
	}
	var req stepRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.withTrack(w, r, func(e *engine.Engine, id string) { e.SetTrackStep(id, step, req.Active) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleReorderTracks(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.ReorderTracks(req.IDs) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleClearAllTracks(w http.ResponseWriter, r *http.Request) {
	if s.do(w, r, (*engine.Engine).ClearAllTracks) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAction runs f on the engine.
func (s *Server) handleAction(f func(*engine.Engine)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.do(w, r, f) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (s *Server) handleSetBPM(w http.ResponseWriter, r *http.Request) {
	var req bpmRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.SetBPM(req.BPM) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSetSteps(w http.ResponseWriter, r *http.Request) {
	var req stepsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.SetSteps(req.Steps) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePlayNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !gs.ValidFrequency(req.Frequency) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid frequency %v", req.Frequency))
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.PlayNote(req.Frequency, req.TrackID) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleReleaseNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.ReleaseNote(req.Frequency) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSustain(w http.ResponseWriter, r *http.Request) {
	var req sustainRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.SetSustain(req.On) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleArpeggiator(w http.ResponseWriter, r *http.Request) {
	var req arpRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Mode != nil && !req.Mode.Valid() {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown arpeggiator mode %q", *req.Mode))
		return
	}
	if s.do(w, r, func(e *engine.Engine) {
		if req.Rate != nil {
			e.SetArpeggiatorRate(*req.Rate)
		}
		if req.Mode != nil {
			e.SetArpeggiatorMode(*req.Mode)
		}
	}) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGlobals(w http.ResponseWriter, r *http.Request) {
	var p gs.GlobalsPatch
	if !s.decode(w, r, &p) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.UpdateGlobals(p) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	var p gs.MasterEffectsPatch
	if !s.decode(w, r, &p) {
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.UpdateMasterEffects(p) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePresetNames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, presetNames{
		Globals:      engine.GlobalPresetNames(),
		Bundles:      engine.TrackBundleNames(),
		Rhythms:      engine.RhythmNames(),
		Chords:       engine.ChordNames(),
		Progressions: engine.ProgressionNames(),
	})
}

// handlePreset runs f with the name from the URL, if names lists it.
func (s *Server) handlePreset(names func() []string, f func(*engine.Engine, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !slices.Contains(names(), name) {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown preset %q", name))
			return
		}
		if s.do(w, r, func(e *engine.Engine) { f(e, name) }) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (s *Server) handlePattern(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("pattern must be a number: %w", err))
		return
	}
	if s.do(w, r, func(e *engine.Engine) { e.LoadNumericPattern(n) }) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// withTrack runs f with the track id from the URL. It writes 404 and
// returns false if there is no such track.
func (s *Server) withTrack(w http.ResponseWriter, r *http.Request, f func(*engine.Engine, string)) bool {
	id := chi.URLParam(r, "id")
	found := false
	if !s.do(w, r, func(e *engine.Engine) {
		if _, found = e.Track(id); found {
			f(e, id)
		}
	}) {
		return false
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no track %q", id))
	}
	return found
}

// do runs f on the engine goroutine, writing 503 and returning false if the
// engine could not run it.
func (s *Server) do(w http.ResponseWriter, r *http.Request, f func(*engine.Engine)) bool {
	if err := s.engine.Do(r.Context(), f); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("could not encode response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
