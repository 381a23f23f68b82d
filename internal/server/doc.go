// Package server implements the MCP (Model Context Protocol) server for ECG
// analysis tools.
//
// This package provides a JSON-RPC 2.0 server that exposes multi-model ECG
// analysis through the MCP protocol, so that MCP-compatible clients can
// submit an ECG image and get back a consolidated verdict with per-model
// findings.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Analysis:
//   - ecg_analyze: Call every configured model and consolidate a verdict
//   - ecg_consolidate: Consolidate caller-supplied predictions (no network)
//
// Rendering:
//   - ecg_annotate: Draw detection boxes over an image
//   - ecg_encode_image: Encode an image file as plain base64
//
// Strip text:
//   - ecg_read_strip: OCR paper speed, gain, heart rate and leads
//
// Configuration:
//   - ecg_models: List configured detection slots
//
// # Images
//
// Tools that take an image accept either a file path or inline base64
// (optionally a data URL). Files are decoded once and cached by path for
// the lifetime of the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// A detection model that fails is not a tool error: ecg_analyze reports it
// per model and in the batch outcome. Only an unusable image fails the call.
//
// # Usage
//
//	srv := server.New(svc, cfg)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
