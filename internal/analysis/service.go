package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/gemini"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/imaging"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/ocr"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/roboflow"
)

var (
	// ErrNoImage is returned when a request names neither a path nor data.
	ErrNoImage = errors.New("analysis: either path or image_base64 is required")

	// ErrAmbiguousImage is returned when a request names both.
	ErrAmbiguousImage = errors.New("analysis: path and image_base64 are mutually exclusive")

	// ErrStripReaderUnavailable is returned by ReadStrip when the service
	// was built without a strip reader.
	ErrStripReaderUnavailable = errors.New("analysis: strip reading is not available")
)

// Detector fans an image out to the hosted detection models.
type Detector interface {
	Analyze(ctx context.Context, imageBase64 string) *roboflow.Batch
}

// OpinionProvider asks a generative model for a second opinion. It reports
// its own failures as fallback opinions.
type OpinionProvider interface {
	SecondOpinion(ctx context.Context, imageBase64, mimeType string, detections any) *gemini.Opinion
}

// StripReader recognizes the text printed on an ECG strip.
type StripReader interface {
	ReadStrip(ctx context.Context, img image.Image) (*ocr.StripInfo, error)
}

// Logger receives diagnostics from optional stages.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Request describes one analysis. Exactly one of Path and ImageBase64 must be
// set.
type Request struct {
	Path        string
	ImageBase64 string

	SecondOpinion bool
	Annotate      bool
	ReadStrip     bool

	// CanvasWidth and CanvasHeight override the configured annotation
	// canvas when positive.
	CanvasWidth  int
	CanvasHeight int
}

// Image is a resolved request image in both decoded and transport form.
type Image struct {
	Image    image.Image
	Base64   string
	MimeType string
	Format   string
}

// Service turns a request into a Report.
type Service struct {
	detector Detector
	opinions OpinionProvider
	strips   StripReader
	cache    *imaging.ImageCache
	render   config.Render
	logger   Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithOpinionProvider enables second opinions.
func WithOpinionProvider(p OpinionProvider) Option {
	return func(s *Service) { s.opinions = p }
}

// WithStripReader enables strip text extraction.
func WithStripReader(r StripReader) Option {
	return func(s *Service) { s.strips = r }
}

// WithImageCache shares an image cache with other components.
func WithImageCache(c *imaging.ImageCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithRender sets the default annotation canvas.
func WithRender(r config.Render) Option {
	return func(s *Service) { s.render = r }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService builds a service around a detector.
func NewService(detector Detector, opts ...Option) *Service {
	s := &Service{
		detector: detector,
		cache:    imaging.NewImageCache(),
		render:   config.Default().Render,
		logger:   nopLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the image cache used to resolve paths.
func (s *Service) Cache() *imaging.ImageCache {
	return s.cache
}

// HasOpinionProvider reports whether second opinions can be produced.
func (s *Service) HasOpinionProvider() bool {
	return s.opinions != nil
}

// CanvasSize returns the requested canvas, falling back to the configured
// default for any non-positive dimension. Canvases above the configured
// pixel limit are rejected with imaging.ErrCanvasTooLarge.
func (s *Service) CanvasSize(width, height int) (int, int, error) {
	if width <= 0 {
		width = s.render.CanvasWidth
	}
	if height <= 0 {
		height = s.render.CanvasHeight
	}
	limit := s.render.MaxCanvasPixels
	if limit <= 0 || limit > imaging.MaxCanvasPixels {
		limit = imaging.MaxCanvasPixels
	}
	if err := imaging.CheckCanvas(width, height, limit); err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

// LoadImage resolves a file path or base64 payload. A data URL prefix on the
// payload is accepted and stripped.
func (s *Service) LoadImage(path, imageBase64 string) (*Image, error) {
	switch {
	case path != "" && imageBase64 != "":
		return nil, ErrAmbiguousImage
	case path != "":
		enc, err := s.cache.EncodeFile(path)
		if err != nil {
			return nil, err
		}
		img, err := s.cache.Load(path)
		if err != nil {
			return nil, err
		}
		return &Image{Image: img, Base64: enc.Base64, MimeType: enc.MimeType, Format: enc.Format}, nil
	case imageBase64 != "":
		_, declared := imaging.StripDataURL(imageBase64)
		img, format, payload, err := imaging.DecodeBase64(imageBase64)
		if err != nil {
			return nil, err
		}
		mime := declared
		if mime == "" {
			mime = "image/" + format
		}
		return &Image{Image: img, Base64: payload, MimeType: mime, Format: format}, nil
	default:
		return nil, ErrNoImage
	}
}

// ReadStrip extracts the printed strip annotations from an image.
func (s *Service) ReadStrip(ctx context.Context, img image.Image) (*ocr.StripInfo, error) {
	if s.strips == nil {
		return nil, ErrStripReaderUnavailable
	}
	return s.strips.ReadStrip(ctx, img)
}

// Analyze runs one batch: every configured model is called concurrently
// with the image, the results are consolidated into a verdict, and the
// optional stages requested run alongside.
//
// Model failures never fail the analysis; they are reported per model and
// in the batch outcome. An error is returned only when the image itself
// cannot be resolved.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	var canvasW, canvasH int
	if req.Annotate {
		w, h, err := s.CanvasSize(req.CanvasWidth, req.CanvasHeight)
		if err != nil {
			return nil, err
		}
		canvasW, canvasH = w, h
	}

	img, err := s.LoadImage(req.Path, req.ImageBase64)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}

	var batch *roboflow.Batch
	var strip *ocr.StripInfo
	var stripErr error

	var g errgroup.Group
	g.Go(func() error {
		batch = s.detector.Analyze(ctx, img.Base64)
		return nil
	})
	if req.ReadStrip {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					stripErr = fmt.Errorf("strip reader panicked: %v", r)
				}
			}()
			strip, stripErr = s.ReadStrip(ctx, img.Image)
			return nil
		})
	}
	_ = g.Wait()

	report.Outcome = batch.Outcome()

	verdict, err := consolidate.Consolidate(batch.Slots())
	switch {
	case errors.Is(err, consolidate.ErrNoResults):
		report.NoVerdict = NoVerdictMessage
	case err != nil:
		return nil, fmt.Errorf("analysis: consolidate: %w", err)
	default:
		report.Verdict = verdict
	}

	for _, e := range batch.Entries {
		mr := ModelReport{Name: e.Name, Status: e.State, Predictions: []PredictionView{}}
		if e.Err != nil {
			mr.Error = e.Err.Error()
		}
		if e.Result != nil {
			for _, p := range e.Result.Predictions {
				mr.Predictions = append(mr.Predictions, NewPredictionView(p))
			}
			report.FindingCount += len(e.Result.Predictions)

			if req.Annotate {
				ann, err := imaging.Annotate(img.Image, e.Result.Predictions, canvasW, canvasH)
				if err != nil {
					s.warn(report, "annotation of %s failed: %v", e.Name, err)
				} else {
					mr.Annotated = ann
				}
			}
		}
		report.Models = append(report.Models, mr)
	}

	if req.ReadStrip {
		if stripErr != nil {
			s.warn(report, "strip reading failed: %v", stripErr)
		} else {
			report.Strip = strip
		}
	}

	if req.SecondOpinion {
		if s.opinions == nil {
			s.warn(report, "second opinion requested but no generative model is configured")
		} else {
			report.SecondOpinion = s.opinions.SecondOpinion(ctx, img.Base64, img.MimeType, newOpinionContext(batch, report.Verdict))
		}
	}

	s.logger.Printf("analysis %s: outcome=%s findings=%d", report.ID, report.Outcome, report.FindingCount)
	return report, nil
}

func (s *Service) warn(r *Report, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Printf("analysis %s: %s", r.ID, msg)
	r.Warnings = append(r.Warnings, msg)
}
