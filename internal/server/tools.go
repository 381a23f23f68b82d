package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var imageSourceProperties = map[string]interface{}{
	"path": map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the ECG image file (PNG, JPEG or GIF). Mutually exclusive with image_base64.",
	},
	"image_base64": map[string]interface{}{
		"type":        "string",
		"description": "Base64-encoded image, optionally with a data URL prefix. Mutually exclusive with path.",
	},
}

var canvasProperties = map[string]interface{}{
	"canvas_width": map[string]interface{}{
		"type":        "integer",
		"description": "Annotation canvas width in pixels. Default 400",
		"default":     400,
	},
	"canvas_height": map[string]interface{}{
		"type":        "integer",
		"description": "Annotation canvas height in pixels. Default 300",
		"default":     300,
	},
}

var predictionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"class":      map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{"type": "number", "description": "0.0 to 1.0"},
		"x":          map[string]interface{}{"type": "number", "description": "Box center X in image pixels"},
		"y":          map[string]interface{}{"type": "number", "description": "Box center Y in image pixels"},
		"width":      map[string]interface{}{"type": "number"},
		"height":     map[string]interface{}{"type": "number"},
	},
	"required": []string{"class", "confidence"},
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Analysis
		{
			Name:        "ecg_analyze",
			Description: "Send an ECG image to every configured detection model in parallel and consolidate their findings into one verdict. Abnormal findings take priority over normal ones; the most confident finding wins. Optionally annotates boxes per model, reads the printed strip text and asks a generative model for a second opinion.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(imageSourceProperties, canvasProperties, map[string]interface{}{
					"second_opinion": map[string]interface{}{
						"type":        "boolean",
						"description": "Ask the generative model for its own assessment. Default false",
						"default":     false,
					},
					"annotate": map[string]interface{}{
						"type":        "boolean",
						"description": "Return a PNG per model with its detection boxes drawn. Default false",
						"default":     false,
					},
					"read_strip": map[string]interface{}{
						"type":        "boolean",
						"description": "Read paper speed, gain, heart rate and lead labels from the strip. Default false",
						"default":     false,
					},
				}),
			},
		},
		{
			Name:        "ecg_consolidate",
			Description: "Consolidate per-model prediction lists into one verdict without calling any model. A result of null marks a model that produced nothing; an empty list marks a model that ran and found nothing.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"results": map[string]interface{}{
						"type":        "array",
						"description": "One entry per model slot, in priority order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"name": map[string]interface{}{"type": "string"},
								"predictions": map[string]interface{}{
									"type":  []string{"array", "null"},
									"items": predictionSchema,
								},
							},
							"required": []string{"name"},
						},
					},
				},
				"required": []string{"results"},
			},
		},

		// Rendering
		{
			Name:        "ecg_annotate",
			Description: "Draw detection boxes over an ECG image, letterboxed into a canvas. Box color runs from red (low confidence) to green (high). Returns a base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(imageSourceProperties, canvasProperties, map[string]interface{}{
					"predictions": map[string]interface{}{
						"type":        "array",
						"description": "Predictions with center-point boxes in source image pixels",
						"items":       predictionSchema,
					},
				}),
				"required": []string{"predictions"},
			},
		},
		{
			Name:        "ecg_encode_image",
			Description: "Load an image file and return it as plain base64 (no data URL prefix) with its format and dimensions, as sent to the detection models.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Strip text
		{
			Name:        "ecg_read_strip",
			Description: "Run OCR on an ECG image and extract the printed paper speed (mm/s), gain (mm/mV), heart rate (bpm) and lead labels.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": merge(imageSourceProperties),
			},
		},

		// Configuration
		{
			Name:        "ecg_models",
			Description: "List the configured detection models in slot order and whether a second-opinion model is available. API keys are never returned.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
