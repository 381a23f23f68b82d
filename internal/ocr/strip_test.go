package ocr

import (
	"reflect"
	"testing"
)

func TestParseStripText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		speed float64
		gain  float64
		rate  int
		leads []string
	}{
		{
			name:  "typical 12-lead header",
			text:  "Vent rate 72 bpm\n25 mm/s  10 mm/mV\nI aVR V1 V4\nII aVL V2 V5\nIII aVF V3 V6",
			speed: 25,
			gain:  10,
			rate:  72,
			leads: []string{"I", "II", "III", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"},
		},
		{
			name:  "hr label and decimal comma",
			text:  "HR: 104\nSpeed 12,5 mm/sec Gain 5 mm/mV",
			speed: 12.5,
			gain:  5,
			rate:  104,
		},
		{
			name:  "rhythm strip with lead II only",
			text:  "II  58/min  50mm/s",
			speed: 50,
			rate:  58,
			leads: []string{"II"},
		},
		{
			name: "nothing recognizable",
			text: "patient name redacted",
		},
		{
			name:  "case insensitive leads",
			text:  "AVR avl v6",
			leads: []string{"aVR", "aVL", "V6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseStripText(tt.text)
			if info.Text != tt.text {
				t.Errorf("Text not preserved")
			}
			if info.PaperSpeed != tt.speed {
				t.Errorf("PaperSpeed: got %v, want %v", info.PaperSpeed, tt.speed)
			}
			if info.Gain != tt.gain {
				t.Errorf("Gain: got %v, want %v", info.Gain, tt.gain)
			}
			if info.HeartRate != tt.rate {
				t.Errorf("HeartRate: got %d, want %d", info.HeartRate, tt.rate)
			}
			if !reflect.DeepEqual(info.Leads, tt.leads) {
				t.Errorf("Leads: got %v, want %v", info.Leads, tt.leads)
			}
		})
	}
}
