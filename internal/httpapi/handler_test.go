package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/analysis"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/roboflow"
)

type stubDetector struct {
	calls int
}

func (d *stubDetector) Analyze(ctx context.Context, imageBase64 string) *roboflow.Batch {
	d.calls++
	return &roboflow.Batch{Entries: []roboflow.Entry{
		{
			Slot: consolidate.Slot{Name: config.ECGDetection, Result: &consolidate.ModelResult{
				Predictions: []consolidate.Prediction{{Label: "No abnormalities detected", Confidence: 0.99}},
			}},
			State: roboflow.StateOK,
		},
		{
			Slot: consolidate.Slot{Name: config.ArrhythmiaDetection, Result: &consolidate.ModelResult{
				Predictions: []consolidate.Prediction{},
			}},
			State: roboflow.StateOK,
		},
	}}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{250, 220, 220, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "ecg.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestAnalyzeHandler(t *testing.T) {
	det := &stubDetector{}
	h := NewHandler(analysis.NewService(det))

	body, ctype := multipartBody(t, "file", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/analyze?annotate=true", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header: got %q", got)
	}

	var report analysis.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if det.calls != 1 {
		t.Errorf("detector calls: got %d, want 1", det.calls)
	}
	if report.Verdict == nil {
		t.Fatal("expected a verdict")
	}
	if report.Verdict.Condition != "Normal" || report.Verdict.ConfidencePercent != 100 || report.Verdict.SourcedFrom != consolidate.AllModels {
		t.Errorf("unexpected verdict %+v", report.Verdict)
	}
	if report.Outcome != roboflow.OutcomeComplete {
		t.Errorf("Outcome: got %q", report.Outcome)
	}
	if report.Models[0].Annotated == nil {
		t.Error("annotate=true should produce annotated images")
	}
}

func TestAnalyzeHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		field  string
		data   []byte
		status int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"missing file field", http.MethodPost, "image", []byte("x"), http.StatusBadRequest},
		{"empty file", http.MethodPost, "file", []byte{}, http.StatusBadRequest},
		{"not an image", http.MethodPost, "file", []byte("hello"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := &stubDetector{}
			h := NewHandler(analysis.NewService(det))

			var req *http.Request
			if tt.field == "" {
				req = httptest.NewRequest(tt.method, "/analyze", nil)
			} else {
				body, ctype := multipartBody(t, tt.field, tt.data)
				req = httptest.NewRequest(tt.method, "/analyze", body)
				req.Header.Set("Content-Type", ctype)
			}
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil || payload["error"] == "" {
				t.Errorf("expected JSON error body, got %s", rec.Body.String())
			}
			if det.calls != 0 {
				t.Error("detector must not be called for a rejected upload")
			}
		})
	}
}

func TestAnalyzeHandler_TooLarge(t *testing.T) {
	h := NewHandler(analysis.NewService(&stubDetector{}), WithMaxUploadBytes(512))

	body, ctype := multipartBody(t, "file", bytes.Repeat([]byte{0x42}, 4096))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 413 or 400", rec.Code)
	}
}

func TestAnalyzeHandler_CanvasTooLarge(t *testing.T) {
	det := &stubDetector{}
	h := NewHandler(analysis.NewService(det))

	body, ctype := multipartBody(t, "file", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/analyze?annotate=true&canvas_width=60000&canvas_height=60000", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400 (%s)", rec.Code, rec.Body.String())
	}
	if det.calls != 0 {
		t.Error("detector must not be called for an oversized canvas")
	}
}

func TestModelsHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Roboflow.APIKey = "secret"
	h := NewHandler(analysis.NewService(&stubDetector{}), WithEndpoints(cfg.Roboflow.Endpoints))

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var payload struct {
		Models []modelInfo `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Models) != 4 {
		t.Fatalf("expected 4 models, got %d", len(payload.Models))
	}
	if !payload.Models[0].Configured || payload.Models[2].Configured {
		t.Errorf("unexpected configured flags %+v", payload.Models)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
		t.Error("API key leaked")
	}
}

func TestHealthAndPreflight(t *testing.T) {
	h := NewHandler(analysis.NewService(&stubDetector{})).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"ok"`)) {
		t.Errorf("health: got %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/analyze", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status: got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should carry allowed methods")
	}
}
