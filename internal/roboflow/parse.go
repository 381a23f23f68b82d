package roboflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
)

// ErrMalformedResponse is returned when a model response does not match the
// expected envelope. Individual prediction failures wrap it as well.
var ErrMalformedResponse = errors.New("roboflow: malformed response")

// wireResponse is the envelope returned by hosted detection models.
type wireResponse struct {
	Time  float64 `json:"time"`
	Image struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image"`
	Predictions *[]wirePrediction `json:"predictions"`
}

// wirePrediction keeps every field optional so that missing values can be
// told apart from zero values.
type wirePrediction struct {
	Class      *string  `json:"class"`
	Confidence *float64 `json:"confidence"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
}

// ParseResponse validates a model response body and converts it into a
// ModelResult tagged with the slot name.
//
// Every prediction must carry a class and a confidence; the first one that
// does not fails the whole response. A response without a predictions array
// is rejected as well, since the model did not report what it found. Extra
// fields such as class_id or detection_id are ignored.
func ParseResponse(source string, body []byte) (*consolidate.ModelResult, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Predictions == nil {
		return nil, fmt.Errorf("%w: missing predictions", ErrMalformedResponse)
	}

	preds, err := convertPredictions(*wire.Predictions)
	if err != nil {
		return nil, err
	}

	return &consolidate.ModelResult{
		Source:      source,
		Time:        wire.Time,
		ImageWidth:  wire.Image.Width,
		ImageHeight: wire.Image.Height,
		Predictions: preds,
	}, nil
}

// ParsePredictions validates a bare JSON array of predictions with the same
// rules as ParseResponse. It serves callers that already hold model output
// rather than a response envelope.
func ParsePredictions(data []byte) ([]consolidate.Prediction, error) {
	var wire []wirePrediction
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return convertPredictions(wire)
}

func convertPredictions(wire []wirePrediction) ([]consolidate.Prediction, error) {
	preds := make([]consolidate.Prediction, 0, len(wire))
	for i, p := range wire {
		if p.Class == nil {
			return nil, fmt.Errorf("%w: prediction %d has no class", ErrMalformedResponse, i)
		}
		if p.Confidence == nil {
			return nil, fmt.Errorf("%w: prediction %d has no confidence", ErrMalformedResponse, i)
		}
		preds = append(preds, consolidate.Prediction{
			Label:      *p.Class,
			Confidence: *p.Confidence,
			X:          p.X,
			Y:          p.Y,
			Width:      p.Width,
			Height:     p.Height,
		})
	}
	return preds, nil
}
