// Package covenant enforces the contract between task manifests and the
// source code they describe. It parses source files into tree-sitter syntax
// trees, extracts the functions, classes, methods, and attributes they
// define and exercise, and checks those against a manifest's expected
// artifacts under configurable strictness.
//
// # Pipeline
//
// Covenant operates over a directory of task manifests
// (task-<NNN>-<slug>.manifest.json):
//
//  1. Resolve: load every manifest, apply supersession, and order the
//     active chain by task number. Results are cached per directory and
//     invalidated by file-set or mtime changes.
//
//  2. Collect: parse a source file with the grammar matching its extension
//     and record declaration facts (what it defines) or usage facts (what
//     it calls and instantiates), or both in one pass.
//
//  3. Align: compare a manifest's expected artifacts against a collection.
//     Creatable files get strict two-way matching, editable files a
//     permissive subset check; implementation mode compares declarations,
//     behavioral mode compares usage in the manifest's test files.
//
// The active chain also feeds a typed knowledge graph (manifests, files,
// modules, artifacts) with content-derived node keys, optionally persisted
// to SQLite, and a tracking report classifying every source file as
// undeclared, registered, or tracked.
//
// # Usage
//
// Create an Engine and validate a manifest:
//
//	e, err := covenant.New(
//		covenant.WithManifestDir("manifests"),
//		covenant.WithSourceRoot("."),
//	)
//	if err != nil { ... }
//
//	ctx := context.Background()
//	report, err := e.Validate(ctx, "manifests/task-001-add-parser.manifest.json",
//		covenant.ValidateOptions{})
//	if report.Aligned { ... }
//
// [Engine.BuildGraph], [Engine.Track], and [Engine.ActiveManifests] expose
// the remaining pipeline stages. [Engine.Watch] keeps the chain cache fresh
// in long-running processes.
//
// # Languages
//
// Built-in collectors cover Python, Go, TypeScript/JavaScript, and HTML
// (script regions delegate to the JavaScript collector). Language support
// is extensible through [WithCollectors].
package covenant
