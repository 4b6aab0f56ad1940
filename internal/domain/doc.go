// Package domain models the data exchanged with the DelhiFlow prediction
// service: pothole detections, flood-risk predictions and the assessments
// built from them.
//
// # Detection Coordinates
//
// The detection endpoint reports rectangles in one of two coordinate systems:
//
//	absolute:   pixels measured against the natural (intrinsic) resolution
//	            of the uploaded photo, e.g. {"x":100,"y":100,"width":50,"height":50}
//	relative:   fractions in [0,1] of the displayed surface, flagged with
//	            "relative": true, e.g. {"x":0.5,"y":0.5,"w":0.1,"h":0.2,"relative":true}
//
// Field aliases accepted on the wire:
//
//	x | left    y | top    width | w    height | h
//
// Aliases are resolved exactly once, by [NormalizeDetections], so nothing
// downstream ever inspects the raw wire shape. Conflicting aliases, missing
// rectangle fields, negative sizes and relative values outside [0,1] are
// rejected with [ErrInvalidDetection].
//
// # Labels
//
// A detection without a label is a "Pothole". The caption drawn on screen is
// the label followed by the score as an integer percent (rounded half up):
//
//	label "Pothole", score 0.734  →  "Pothole 73%"
//	label "Crack",   no score     →  "Crack"
//
// Detections scoring at least [HighConfidenceThreshold] count as high
// confidence in a [Summary].
//
// # Risk Levels
//
// The prediction model classifies a location as Low, Medium or High flood
// risk, with a confidence expressed in percent (0–100). Unrecognized labels
// map to [RiskUnknown] and carry no advisory.
package domain
