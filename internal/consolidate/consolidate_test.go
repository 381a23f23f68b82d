package consolidate

import (
	"errors"
	"testing"
)

func result(preds ...Prediction) *ModelResult {
	if preds == nil {
		preds = []Prediction{}
	}
	return &ModelResult{Predictions: preds}
}

// percent mirrors the runtime conversion so float comparisons are exact.
func percent(conf float64) float64 {
	return conf * 100
}

func pred(label string, conf float64) Prediction {
	return Prediction{Label: label, Confidence: conf}
}

func TestConsolidate_NoSlots(t *testing.T) {
	v, err := Consolidate(nil)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("err: got %v, want ErrNoResults", err)
	}
	if v != nil {
		t.Errorf("verdict: got %+v, want nil", v)
	}
}

func TestConsolidate_AllAbsent(t *testing.T) {
	slots := []Slot{
		{Name: "ECG Detection"},
		{Name: "Arrhythmia Detection"},
		{Name: "Model 7n51b"},
		{Name: "Model VBBKZ"},
	}
	if _, err := Consolidate(slots); !errors.Is(err, ErrNoResults) {
		t.Fatalf("err: got %v, want ErrNoResults", err)
	}
}

func TestConsolidate_SynthesizedNormal(t *testing.T) {
	tests := []struct {
		name  string
		slots []Slot
	}{
		{
			"all empty",
			[]Slot{
				{Name: "ECG Detection", Result: result()},
				{Name: "Arrhythmia Detection", Result: result()},
			},
		},
		{
			"one present and empty, others absent",
			[]Slot{
				{Name: "ECG Detection"},
				{Name: "Model 7n51b", Result: result()},
			},
		},
		{
			"only no abnormalities labels",
			[]Slot{
				{Name: "ECG Detection", Result: result(pred("No abnormalities detected", 0.99))},
				{Name: "Model VBBKZ", Result: result(pred("NO ABNORMALITIES", 0.5), pred("no Abnormalities found", 0.7))},
			},
		},
		{
			"no abnormalities wins over normal substring",
			[]Slot{
				{Name: "ECG Detection", Result: result(pred("No abnormalities - Normal", 0.9))},
			},
		},
	}

	want := Verdict{Condition: "Normal", ConfidencePercent: 100, SourcedFrom: AllModels}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Consolidate(tt.slots)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *v != want {
				t.Errorf("got %+v, want %+v", *v, want)
			}
		})
	}
}

func TestConsolidate_AbnormalBeatsConfidentNormal(t *testing.T) {
	slots := []Slot{
		{Name: "ECG Detection", Result: result(pred("Normal", 0.95))},
		{Name: "Arrhythmia Detection", Result: result(pred("Atrial Fibrillation", 0.62))},
		{Name: "Model 7n51b", Result: result(pred("Normal", 0.95))},
		{Name: "Model VBBKZ", Result: result(pred("Normal", 0.95))},
	}

	v, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Condition != "Atrial Fibrillation" {
		t.Errorf("Condition: got %q, want Atrial Fibrillation", v.Condition)
	}
	if v.ConfidencePercent != percent(0.62) {
		t.Errorf("ConfidencePercent: got %v, want %v", v.ConfidencePercent, percent(0.62))
	}
	if v.SourcedFrom != "Arrhythmia Detection" {
		t.Errorf("SourcedFrom: got %q, want Arrhythmia Detection", v.SourcedFrom)
	}
}

func TestConsolidate_HighestAbnormal(t *testing.T) {
	slots := []Slot{
		{Name: "ECG Detection", Result: result(pred("A", 0.40))},
		{Name: "Model VBBKZ", Result: result(pred("B", 0.71))},
	}

	v, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Condition != "B" || v.SourcedFrom != "Model VBBKZ" {
		t.Errorf("got %+v, want B from Model VBBKZ", *v)
	}
	if v.ConfidencePercent != percent(0.71) {
		t.Errorf("ConfidencePercent: got %v, want %v", v.ConfidencePercent, percent(0.71))
	}
}

func TestConsolidate_HighestNormal(t *testing.T) {
	slots := []Slot{
		{Name: "ECG Detection", Result: result(pred("Normal", 0.80))},
		{Name: "Arrhythmia Detection", Result: result(pred("Normal Sinus Rhythm", 0.91))},
	}

	v, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Condition != "Normal Sinus Rhythm" || v.SourcedFrom != "Arrhythmia Detection" {
		t.Errorf("got %+v, want Normal Sinus Rhythm from Arrhythmia Detection", *v)
	}
}

func TestConsolidate_Idempotent(t *testing.T) {
	slots := []Slot{
		{Name: "ECG Detection", Result: result(pred("Normal", 0.8), pred("ST Elevation", 0.33))},
		{Name: "Arrhythmia Detection"},
		{Name: "Model 7n51b", Result: result(pred("PVC", 0.33))},
	}

	first, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first != *second {
		t.Errorf("results differ: %+v vs %+v", *first, *second)
	}
	if first == second {
		t.Error("expected a fresh verdict per call")
	}
}

func TestConsolidate_CaseInsensitive(t *testing.T) {
	for _, label := range []string{"NORMAL", "normal", "NoRmAl"} {
		t.Run(label, func(t *testing.T) {
			slots := []Slot{
				{Name: "ECG Detection", Result: result(pred(label, 0.9))},
				{Name: "Model 7n51b", Result: result(pred("Normal", 0.5))},
			}
			v, err := Consolidate(slots)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// Treated as normal: the 0.9 normal wins, not promoted to abnormal.
			if v.Condition != label || v.SourcedFrom != "ECG Detection" {
				t.Errorf("got %+v, want %s from ECG Detection", *v, label)
			}
		})
	}
}

func TestConsolidate_TieKeepsFirstSeen(t *testing.T) {
	slots := []Slot{
		{Name: "ECG Detection", Result: result(pred("PVC", 0.5))},
		{Name: "Arrhythmia Detection", Result: result(pred("PAC", 0.5))},
	}
	v, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Condition != "PVC" {
		t.Errorf("Condition: got %q, want PVC", v.Condition)
	}
}

func TestConsolidate_OutOfRangeConfidencePropagates(t *testing.T) {
	slots := []Slot{{Name: "ECG Detection", Result: result(pred("PVC", 1.5))}}
	v, err := Consolidate(slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ConfidencePercent != 150 {
		t.Errorf("ConfidencePercent: got %v, want 150", v.ConfidencePercent)
	}
}

func TestPrediction_HasBox(t *testing.T) {
	x, y, w, h := 1.0, 2.0, 3.0, 4.0
	full := Prediction{X: &x, Y: &y, Width: &w, Height: &h}
	if !full.HasBox() {
		t.Error("expected HasBox for full box")
	}
	partial := Prediction{X: &x, Y: &y}
	if partial.HasBox() {
		t.Error("expected no box when width/height missing")
	}
}

func TestLabelClassification(t *testing.T) {
	tests := []struct {
		label     string
		noFinding bool
		normal    bool
	}{
		{"Normal", false, true},
		{"Abnormal rhythm", false, true},
		{"Atrial Fibrillation", false, false},
		{"No abnormalities detected", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := IsNoFinding(tt.label); got != tt.noFinding {
				t.Errorf("IsNoFinding(%q): got %v, want %v", tt.label, got, tt.noFinding)
			}
			if got := IsNormal(tt.label); got != tt.normal {
				t.Errorf("IsNormal(%q): got %v, want %v", tt.label, got, tt.normal)
			}
		})
	}
}
