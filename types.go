package covenant

import (
	"covenant/internal/align"
	"covenant/internal/collect"
	"covenant/internal/graph"
	"covenant/internal/manifest"
	"covenant/internal/registry"
	"covenant/internal/track"
)

// Public type aliases for internal types surfaced by the Engine API. These
// are Go type aliases (=) — identical to the internal types at compile
// time, so no conversion is needed.

type Manifest = manifest.Manifest
type Artifact = manifest.Artifact
type SchemaError = manifest.SchemaError
type Collection = collect.Collection
type Collector = collect.Collector
type ParseError = collect.ParseError
type AlignmentError = align.Error
type RegistryIssue = registry.Issue
type Graph = graph.Graph
type TrackingReport = track.Report
type FileStatus = track.FileStatus

// ValidationReport is the outcome of validating one manifest.
type ValidationReport struct {
	Manifest string            `json:"manifest"`
	File     string            `json:"file,omitempty"`
	Mode     string            `json:"mode"`
	Category string            `json:"category,omitempty"`
	Aligned  bool              `json:"aligned"`
	Errors   []*AlignmentError `json:"errors,omitempty"`
	Commands [][]string        `json:"commands,omitempty"`
}
