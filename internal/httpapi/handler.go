// Package httpapi exposes ECG analysis over HTTP for browser and script
// clients that upload an image file instead of speaking MCP.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/analysis"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
)

// Logger receives request failures.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Handler serves the upload API.
type Handler struct {
	svc       *analysis.Service
	endpoints []config.Endpoint
	maxUpload int64
	logger    Logger
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMaxUploadBytes limits the multipart body size.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithEndpoints sets the model listing served on /models.
func WithEndpoints(eps []config.Endpoint) Option {
	return func(h *Handler) { h.endpoints = eps }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler builds the upload API around an analysis service.
func NewHandler(svc *analysis.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		maxUpload: config.Default().HTTP.MaxUploadBytes,
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API mux wrapped in permissive CORS.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", h.AnalyzeHandler)
	mux.HandleFunc("/models", h.ModelsHandler)
	mux.HandleFunc("/health", h.HealthHandler)
	return corsMiddleware(mux)
}

// AnalyzeHandler handles POST /analyze with the image in the multipart
// field "file". Query flags second_opinion, annotate and read_strip enable
// the optional stages; canvas_width and canvas_height size the annotations.
func (h *Handler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := analysis.Request{
		SecondOpinion: queryBool(q.Get("second_opinion")),
		Annotate:      queryBool(q.Get("annotate")),
		ReadStrip:     queryBool(q.Get("read_strip")),
		CanvasWidth:   queryInt(q.Get("canvas_width")),
		CanvasHeight:  queryInt(q.Get("canvas_height")),
	}
	if req.Annotate {
		if _, _, err := h.svc.CanvasSize(req.CanvasWidth, req.CanvasHeight); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		respondError(w, "Uploaded file is empty", http.StatusBadRequest)
		return
	}

	req.ImageBase64 = base64.StdEncoding.EncodeToString(data)

	report, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		h.logger.Printf("analyze upload failed: %v", err)
		respondError(w, "Analysis failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	respondJSON(w, report, http.StatusOK)
}

type modelInfo struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// ModelsHandler handles GET /models.
func (h *Handler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	models := make([]modelInfo, 0, len(h.endpoints))
	for _, e := range h.endpoints {
		models = append(models, modelInfo{Name: e.Name, Configured: e.Configured()})
	}
	respondJSON(w, map[string]interface{}{"models": models}, http.StatusOK)
}

// HealthHandler reports liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func queryInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
