package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwave/breathscan/pkg/audio/wav"
	"github.com/medwave/breathscan/pkg/classify"
	"github.com/medwave/breathscan/pkg/mfcc"
	"github.com/medwave/breathscan/pkg/predict"
)

type stubModel struct {
	probs []float32
}

func (m *stubModel) Predict(mfcc.Matrix) ([]float32, error) { return m.probs, nil }
func (m *stubModel) Close() error                           { return nil }

func newTestServer(t *testing.T, model classify.Model) *Server {
	t.Helper()
	tax, err := classify.NewTaxonomy([]string{"bronchitis", "healthy_breath", "healthy_voice"})
	require.NoError(t, err)
	ext, err := mfcc.New(mfcc.DefaultConfig())
	require.NoError(t, err)
	p, err := predict.New(model, tax, ext)
	require.NoError(t, err)
	srv, err := New(p)
	require.NoError(t, err)
	return srv
}

func sineWAV(t *testing.T) []byte {
	t.Helper()
	const rate = 22050
	samples := make([]int16, rate)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	data, err := wav.Encode(samples, rate)
	require.NoError(t, err)
	return data
}

func TestAnalyzeRawBody(t *testing.T) {
	srv := newTestServer(t, &stubModel{probs: []float32{0.8, 0.1, 0.1}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "audio/wav", bytes.NewReader(sineWAV(t)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body struct {
		RequestID     string             `json:"request_id"`
		Label         string             `json:"label"`
		Risk          float64            `json:"risk"`
		Tier          string             `json:"tier"`
		Probabilities map[string]float64 `json:"probabilities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "bronchitis", body.Label)
	assert.InDelta(t, 0.8, body.Risk, 1e-6)
	assert.Equal(t, "high", body.Tier)
	assert.NotEmpty(t, body.RequestID)
	assert.Len(t, body.Probabilities, 3)
}

func TestAnalyzeMultipart(t *testing.T) {
	srv := newTestServer(t, &stubModel{probs: []float32{0.1, 0.8, 0.1}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "clip.wav")
	require.NoError(t, err)
	_, err = fw.Write(sineWAV(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/v1/analyze", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Label string  `json:"label"`
		Risk  float64 `json:"risk"`
		Tier  string  `json:"tier"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy_breath", body.Label)
	assert.InDelta(t, 0.2, body.Risk, 1e-6)
	assert.Equal(t, "low", body.Tier)
}

func TestAnalyzeBadAudio(t *testing.T) {
	srv := newTestServer(t, &stubModel{probs: []float32{1, 0, 0}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "audio/wav", strings.NewReader("not audio at all"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Label   string  `json:"label"`
		Risk    float64 `json:"risk"`
		Tier    string  `json:"tier"`
		Message string  `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, strings.HasPrefix(body.Label, "Error: "), "label = %q", body.Label)
	assert.Zero(t, body.Risk)
	assert.Equal(t, "low", body.Tier)
	assert.NotEmpty(t, body.Message)
}

func TestAnalyzeDegraded(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "audio/wav", bytes.NewReader(sineWAV(t)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubModel{probs: []float32{1, 0, 0}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
		Labels      int    `json:"labels"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.ModelLoaded)
	assert.Equal(t, 3, body.Labels)
}

func TestHealthzDegraded(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.ModelLoaded)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubModel{probs: []float32{0.8, 0.1, 0.1}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "audio/wav", bytes.NewReader(sineWAV(t)))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), `breathscan_analyses_total{outcome="ok"} 1`)
	assert.Contains(t, string(text), `breathscan_risk_tier_total{tier="high"} 1`)
}

func TestRequestIDPassthrough(t *testing.T) {
	srv := newTestServer(t, &stubModel{probs: []float32{1, 0, 0}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "fixed-id-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "fixed-id-123", resp.Header.Get("X-Request-Id"))
}
