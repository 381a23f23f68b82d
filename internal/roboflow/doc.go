// Package roboflow calls hosted ECG detection models and turns their JSON
// answers into consolidate.ModelResult values.
//
// # Wire Format
//
// Each endpoint receives the image as a raw base64 string in the request
// body (Content-Type application/x-www-form-urlencoded) with the key in the
// api_key query parameter, and answers with:
//
//	{
//	  "time": 0.12,
//	  "image": {"width": 640, "height": 480},
//	  "predictions": [
//	    {"x": 320, "y": 240, "width": 50, "height": 40, "confidence": 0.87, "class": "PVC"}
//	  ]
//	}
//
// The spatial fields are optional. class and confidence are required; a
// response with a prediction missing either is rejected as a whole.
//
// # Fan-out
//
// Analyzer.Analyze calls every configured endpoint concurrently and waits for
// all of them. Failures leave the slot absent and are recorded on the Entry;
// endpoints without a URL are reported as skipped.
package roboflow
