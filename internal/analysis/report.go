package analysis

import (
	"math"
	"time"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/gemini"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/imaging"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/ocr"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/roboflow"
)

// NoVerdictMessage is reported in place of a verdict when no model produced
// a result.
const NoVerdictMessage = "no analysis available"

// Severity of a single finding as shown next to it.
const (
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
)

const highSeverityThreshold = 0.7

// PredictionView is a prediction decorated for display.
type PredictionView struct {
	consolidate.Prediction
	Percent  int    `json:"percent"`
	Severity string `json:"severity"`
}

// NewPredictionView rounds the confidence to a whole percentage and grades
// it: above 0.7 is high, anything else moderate.
func NewPredictionView(p consolidate.Prediction) PredictionView {
	severity := SeverityModerate
	if p.Confidence > highSeverityThreshold {
		severity = SeverityHigh
	}
	return PredictionView{
		Prediction: p,
		Percent:    int(math.Round(p.Confidence * 100)),
		Severity:   severity,
	}
}

// ModelReport is what one detection model contributed to a report.
type ModelReport struct {
	Name        string                  `json:"name"`
	Status      roboflow.State          `json:"status"`
	Error       string                  `json:"error,omitempty"`
	Predictions []PredictionView        `json:"predictions"`
	Annotated   *imaging.AnnotatedImage `json:"annotated,omitempty"`
}

// Report is the complete result of analyzing one ECG image.
type Report struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Outcome   roboflow.Outcome `json:"outcome"`
	Models    []ModelReport    `json:"models"`

	// Verdict is nil when no model produced a result; NoVerdict then says so.
	Verdict   *consolidate.Verdict `json:"verdict"`
	NoVerdict string               `json:"no_verdict,omitempty"`

	// FindingCount is the number of predictions across all models.
	FindingCount int `json:"finding_count"`

	SecondOpinion *gemini.Opinion `json:"second_opinion,omitempty"`
	Strip         *ocr.StripInfo  `json:"strip,omitempty"`

	// Warnings collects optional stages that were requested but could not
	// run. They never fail the report.
	Warnings []string `json:"warnings,omitempty"`
}

// opinionContext is the detection summary handed to the second-opinion
// model.
type opinionContext struct {
	Models  []modelContext       `json:"models"`
	Verdict *consolidate.Verdict `json:"consolidated_verdict,omitempty"`
}

type modelContext struct {
	Name        string                   `json:"name"`
	Status      roboflow.State           `json:"status"`
	Predictions []consolidate.Prediction `json:"predictions,omitempty"`
}

func newOpinionContext(batch *roboflow.Batch, verdict *consolidate.Verdict) opinionContext {
	oc := opinionContext{Verdict: verdict}
	for _, e := range batch.Entries {
		mc := modelContext{Name: e.Name, Status: e.State}
		if e.Result != nil {
			mc.Predictions = e.Result.Predictions
		}
		oc.Models = append(oc.Models, mc)
	}
	return oc
}
