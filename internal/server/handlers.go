package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/analysis"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/imaging"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/roboflow"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ecg_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors, including panics inside a tool and results that
// cannot be encoded, return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) (resp *MCPResponse) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			resp = s.errorResponse(req.ID, -32000, "Tool execution failed", fmt.Sprintf("%s panicked: %v", params.Name, r))
		}
	}()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	text, err := marshalResult(result)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": text,
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "ecg_analyze":
		return s.handleAnalyze(ctx, args)
	case "ecg_consolidate":
		return s.handleConsolidate(args)
	case "ecg_annotate":
		return s.handleAnnotate(args)
	case "ecg_encode_image":
		return s.handleEncodeImage(args)
	case "ecg_read_strip":
		return s.handleReadStrip(ctx, args)
	case "ecg_models":
		return s.handleModels()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// marshalResult converts a tool result to pretty-printed JSON. Non-finite
// numbers, which can come from out-of-range confidences, fail here.
func marshalResult(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

// === Analysis ===

type analyzeArgs struct {
	Path          string `json:"path"`
	ImageBase64   string `json:"image_base64"`
	SecondOpinion bool   `json:"second_opinion"`
	Annotate      bool   `json:"annotate"`
	ReadStrip     bool   `json:"read_strip"`
	CanvasWidth   int    `json:"canvas_width"`
	CanvasHeight  int    `json:"canvas_height"`
}

func (s *Server) handleAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.svc.Analyze(ctx, analysis.Request{
		Path:          a.Path,
		ImageBase64:   a.ImageBase64,
		SecondOpinion: a.SecondOpinion,
		Annotate:      a.Annotate,
		ReadStrip:     a.ReadStrip,
		CanvasWidth:   a.CanvasWidth,
		CanvasHeight:  a.CanvasHeight,
	})
}

type consolidateArgs struct {
	Results []struct {
		Name        string          `json:"name"`
		Predictions json.RawMessage `json:"predictions"`
	} `json:"results"`
}

// ConsolidateResult is the ecg_consolidate output. Verdict is null when no
// slot carried a result, and Reason says so.
type ConsolidateResult struct {
	Verdict *consolidate.Verdict `json:"verdict"`
	Reason  string               `json:"reason,omitempty"`
}

func (s *Server) handleConsolidate(args json.RawMessage) (interface{}, error) {
	var a consolidateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	slots := make([]consolidate.Slot, len(a.Results))
	for i, r := range a.Results {
		slots[i].Name = r.Name
		if isNullJSON(r.Predictions) {
			continue
		}
		preds, err := roboflow.ParsePredictions(r.Predictions)
		if err != nil {
			return nil, fmt.Errorf("result %d (%s): %w", i, r.Name, err)
		}
		slots[i].Result = &consolidate.ModelResult{Source: r.Name, Predictions: preds}
	}

	verdict, err := consolidate.Consolidate(slots)
	if errors.Is(err, consolidate.ErrNoResults) {
		return ConsolidateResult{Reason: analysis.NoVerdictMessage}, nil
	}
	if err != nil {
		return nil, err
	}
	return ConsolidateResult{Verdict: verdict}, nil
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// === Rendering ===

type annotateArgs struct {
	Path         string          `json:"path"`
	ImageBase64  string          `json:"image_base64"`
	Predictions  json.RawMessage `json:"predictions"`
	CanvasWidth  int             `json:"canvas_width"`
	CanvasHeight int             `json:"canvas_height"`
}

func (s *Server) handleAnnotate(args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if isNullJSON(a.Predictions) {
		return nil, errors.New("predictions is required")
	}
	preds, err := roboflow.ParsePredictions(a.Predictions)
	if err != nil {
		return nil, err
	}
	w, h, err := s.svc.CanvasSize(a.CanvasWidth, a.CanvasHeight)
	if err != nil {
		return nil, err
	}
	img, err := s.svc.LoadImage(a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}
	return imaging.Annotate(img.Image, preds, w, h)
}

type encodeImageArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleEncodeImage(args json.RawMessage) (interface{}, error) {
	var a encodeImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return s.svc.Cache().EncodeFile(a.Path)
}

// === Strip text ===

type readStripArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleReadStrip(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a readStripArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.svc.LoadImage(a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}
	return s.svc.ReadStrip(ctx, img.Image)
}

// === Configuration ===

// ModelInfo describes one detection slot. URL omits any query string, so
// credentials embedded in it are not echoed.
type ModelInfo struct {
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	Configured bool   `json:"configured"`
}

// ModelsResult is the ecg_models output.
type ModelsResult struct {
	Models             []ModelInfo `json:"models"`
	SecondOpinion      bool        `json:"second_opinion"`
	SecondOpinionModel string      `json:"second_opinion_model,omitempty"`
}

func (s *Server) handleModels() (interface{}, error) {
	res := ModelsResult{Models: make([]ModelInfo, 0, len(s.endpoints))}
	for _, e := range s.endpoints {
		res.Models = append(res.Models, ModelInfo{Name: e.Name, URL: redactURL(e.URL), Configured: e.Configured()})
	}
	if s.svc.HasOpinionProvider() {
		res.SecondOpinion = true
		res.SecondOpinionModel = s.gemini.Model
	}
	return res, nil
}

// redactURL drops userinfo, query and fragment from an endpoint URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
