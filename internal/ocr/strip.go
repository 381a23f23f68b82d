package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

// StripInfo is what could be read from the text printed on an ECG strip.
// Fields that were not found are left at their zero values.
type StripInfo struct {
	// Text is the raw recognized text.
	Text string `json:"text"`

	// PaperSpeed is the recording speed in mm/s, usually 25 or 50.
	PaperSpeed float64 `json:"paper_speed_mm_s,omitempty"`

	// Gain is the amplitude calibration in mm/mV, usually 10.
	Gain float64 `json:"gain_mm_mv,omitempty"`

	// HeartRate is the printed rate in beats per minute.
	HeartRate int `json:"heart_rate_bpm,omitempty"`

	// Leads lists the lead labels found, in canonical order.
	Leads []string `json:"leads,omitempty"`

	// Confidence is the mean word confidence reported by the OCR engine
	// (0.0 to 1.0), or 0 when word boxes were unavailable.
	Confidence float64 `json:"confidence"`
}

var (
	speedPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*mm\s*/\s*s(?:ec)?\b`)
	gainPattern  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*mm\s*/\s*mv\b`)
	ratePattern  = regexp.MustCompile(`(?i)(?:\b(?:hr|rate|vent\.?\s*rate)\s*[:=]?\s*(\d{2,3})\b|\b(\d{2,3})\s*(?:bpm|/min)\b)`)
	leadPattern  = regexp.MustCompile(`(?i)\b(aVR|aVL|aVF|V[1-6]|III|II|I)\b`)
)

var leadOrder = []string{"I", "II", "III", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"}

// ParseStripText extracts calibration and rate annotations from OCR text.
func ParseStripText(text string) *StripInfo {
	info := &StripInfo{Text: text}

	if m := speedPattern.FindStringSubmatch(text); m != nil {
		info.PaperSpeed = parseNumber(m[1])
	}
	if m := gainPattern.FindStringSubmatch(text); m != nil {
		info.Gain = parseNumber(m[1])
	}
	if m := ratePattern.FindStringSubmatch(text); m != nil {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		info.HeartRate, _ = strconv.Atoi(v)
	}

	found := make(map[string]bool)
	for _, m := range leadPattern.FindAllString(text, -1) {
		found[canonicalLead(m)] = true
	}
	for _, lead := range leadOrder {
		if found[lead] {
			info.Leads = append(info.Leads, lead)
		}
	}

	return info
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

func canonicalLead(s string) string {
	for _, lead := range leadOrder {
		if strings.EqualFold(lead, s) {
			return lead
		}
	}
	return s
}
