package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jdhagood/go-ledwall-server/internal/pattern"
)

func newTestHandler(t *testing.T) (*Handler, *State) {
	t.Helper()
	st := NewState()
	h := NewHandler(st, func() Status {
		return Status{ActiveSource: "udp", FramesPresented: 42, Width: 256, Height: 192}
	}, nil)
	return h, st
}

func TestPostShader(t *testing.T) {
	h, st := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/shader", "application/json",
		strings.NewReader(`{"source":"void main() {}"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := st.Shader(); got != "void main() {}" {
		t.Errorf("stored shader = %q", got)
	}
}

func TestPostShaderRejectsBadBody(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	for _, body := range []string{``, `{}`, `{"source":""}`, `not json`} {
		resp, err := http.Post(srv.URL+"/shader", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestPostAudioClampsAndPads(t *testing.T) {
	h, st := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	// Short spectrum gets zero-padded.
	resp, err := http.Post(srv.URL+"/audio", "application/json",
		strings.NewReader(`{"fft":[0.5,0.25]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := st.FFT()
	if len(got) != pattern.NumFFTBins {
		t.Fatalf("len(fft) = %d, want %d", len(got), pattern.NumFFTBins)
	}
	if got[0] != 0.5 || got[1] != 0.25 || got[2] != 0 {
		t.Errorf("fft = %v", got[:4])
	}

	// Oversized spectrum gets clamped.
	long := make([]float64, 64)
	for i := range long {
		long[i] = 1
	}
	payload, _ := json.Marshal(map[string][]float64{"fft": long})
	resp, err = http.Post(srv.URL+"/audio", "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if n := len(st.FFT()); n != pattern.NumFFTBins {
		t.Errorf("len(fft) after oversized post = %d", n)
	}
}

func TestGetStatus(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := Status{ActiveSource: "udp", FramesPresented: 42, Width: 256, Height: 192}
	if got != want {
		t.Errorf("status = %+v, want %+v", got, want)
	}
}

func TestStateFFTReturnsCopy(t *testing.T) {
	st := NewState()
	st.SetFFT([]float64{1, 2, 3})
	a := st.FFT()
	a[0] = 99
	if st.FFT()[0] != 1 {
		t.Error("FFT exposed internal storage")
	}
}
