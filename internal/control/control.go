// Package control exposes the producer-side HTTP surface: shader text
// upload, audio spectrum updates, and a status snapshot.
package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
	"github.com/jdhagood/go-ledwall-server/internal/pattern"
)

// State holds the mutable control-plane inputs shared with the render
// side. All methods are safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	shader string
	fft    [pattern.NumFFTBins]float64
}

func NewState() *State { return &State{} }

// SetShader stores the current shader source text.
func (s *State) SetShader(src string) {
	s.mu.Lock()
	s.shader = src
	s.mu.Unlock()
}

// Shader returns the most recently uploaded shader source.
func (s *State) Shader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shader
}

// SetFFT stores an audio spectrum, clamping or zero-padding the input
// to exactly NumFFTBins bins.
func (s *State) SetFFT(bins []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(s.fft[:], bins)
	for i := n; i < len(s.fft); i++ {
		s.fft[i] = 0
	}
}

// FFT returns a copy of the current spectrum. Satisfies
// pattern.FFTFunc.
func (s *State) FFT() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.fft))
	copy(out, s.fft[:])
	return out
}

// StatusFunc reports the live status fields owned by the wiring layer.
type StatusFunc func() Status

// Status is the GET /status response body.
type Status struct {
	ActiveSource    string `json:"active_source"`
	FramesPresented uint64 `json:"frames_presented"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

// Handler serves the control endpoints.
type Handler struct {
	state  *State
	status StatusFunc
	logger *slog.Logger
}

func NewHandler(state *State, status StatusFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.L()
	}
	return &Handler{state: state, status: status, logger: logger}
}

// Router builds the chi router for the control surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/shader", h.PostShader)
	r.Post("/audio", h.PostAudio)
	r.Get("/status", h.GetStatus)
	return r
}

// PostShader handles POST /shader. Body: {"source": "<text>"}.
func (h *Handler) PostShader(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Source == "" {
		metrics.IncError(metrics.ErrControl)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.state.SetShader(body.Source)
	h.logger.Info("shader_updated", "bytes", len(body.Source))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PostAudio handles POST /audio. Body: {"fft": [floats]}.
func (h *Handler) PostAudio(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FFT []float64 `json:"fft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FFT == nil {
		metrics.IncError(metrics.ErrControl)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.state.SetFFT(body.FFT)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
