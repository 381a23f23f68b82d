package consolidate

import (
	"errors"
	"strings"
)

// AllModels is the source name reported when the verdict is synthesized from
// the absence of findings rather than drawn from a single model.
const AllModels = "All Models"

// ErrNoResults is returned when no slot carries a model result, so there is
// nothing to consolidate.
var ErrNoResults = errors.New("consolidate: no model results")

// Prediction is one finding returned by one detection model.
//
// The spatial fields describe a center-point bounding box and are optional;
// they matter only to the renderer.
type Prediction struct {
	Label      string   `json:"class"`
	Confidence float64  `json:"confidence"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
}

// HasBox reports whether all four spatial fields are present.
func (p Prediction) HasBox() bool {
	return p.X != nil && p.Y != nil && p.Width != nil && p.Height != nil
}

// ModelResult is the parsed output of one model invocation for one image.
type ModelResult struct {
	Source      string       `json:"source"`
	Time        float64      `json:"time"`
	ImageWidth  int          `json:"image_width"`
	ImageHeight int          `json:"image_height"`
	Predictions []Prediction `json:"predictions"`
}

// Slot is one named model source. A nil Result means the call failed or was
// never made; a Result with no predictions means the model ran and found
// nothing.
type Slot struct {
	Name   string       `json:"name"`
	Result *ModelResult `json:"result"`
}

// Present reports whether the slot carries a result.
func (s Slot) Present() bool {
	return s.Result != nil
}

// Verdict is the single prioritized summary of a batch of model results.
type Verdict struct {
	Condition         string  `json:"condition"`
	ConfidencePercent float64 `json:"confidence_percent"`
	SourcedFrom       string  `json:"sourced_from"`
}

// AllAbsent reports whether no slot carries a result. An empty slot list is
// all absent.
func AllAbsent(slots []Slot) bool {
	for _, s := range slots {
		if s.Present() {
			return false
		}
	}
	return true
}

// IsNoFinding reports whether a label explicitly states that nothing was
// found. Such predictions count neither as normal nor as abnormal evidence.
func IsNoFinding(label string) bool {
	return strings.Contains(strings.ToLower(label), "no abnormalities")
}

// IsNormal reports whether a label describes a normal reading.
func IsNormal(label string) bool {
	return strings.Contains(strings.ToLower(label), "normal")
}

type tagged struct {
	pred   Prediction
	source string
}

// Consolidate reduces the results of several models to one verdict.
//
// Abnormal findings always outrank normal ones regardless of confidence;
// within a tier the highest confidence wins and, on equal confidence, the
// first prediction seen in slot order is kept. Predictions stating "no
// abnormalities" are discarded. When nothing remains, the verdict is a
// synthesized Normal at 100% from AllModels.
//
// Confidence values are trusted as given and are not clamped.
//
// It returns ErrNoResults when every slot is absent.
func Consolidate(slots []Slot) (*Verdict, error) {
	if AllAbsent(slots) {
		return nil, ErrNoResults
	}

	var abnormal, normal *tagged
	for _, s := range slots {
		if !s.Present() {
			continue
		}
		for _, p := range s.Result.Predictions {
			if IsNoFinding(p.Label) {
				continue
			}
			t := tagged{pred: p, source: s.Name}
			if IsNormal(p.Label) {
				normal = better(normal, t)
			} else {
				abnormal = better(abnormal, t)
			}
		}
	}

	best := abnormal
	if best == nil {
		best = normal
	}
	if best == nil {
		return &Verdict{
			Condition:         "Normal",
			ConfidencePercent: 100,
			SourcedFrom:       AllModels,
		}, nil
	}

	return &Verdict{
		Condition:         best.pred.Label,
		ConfidencePercent: best.pred.Confidence * 100,
		SourcedFrom:       best.source,
	}, nil
}

// better keeps the current pick unless the candidate is strictly more
// confident.
func better(current *tagged, candidate tagged) *tagged {
	if current == nil || candidate.pred.Confidence > current.pred.Confidence {
		return &candidate
	}
	return current
}
