// Package track cross-references the source tree against the active
// manifest chain, classifying every analyzable file as undeclared,
// registered, or fully tracked.
package track

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"covenant/internal/align"
	"covenant/internal/collect"
	"covenant/internal/manifest"
)

// State is a file's tracking classification.
type State string

const (
	// StateUndeclared marks a file absent from every active manifest.
	StateUndeclared State = "UNDECLARED"
	// StateRegistered marks a file some manifest references, with
	// outstanding issues listed per file.
	StateRegistered State = "REGISTERED"
	// StateTracked marks a file with creation/edit history, declared
	// artifacts, and associated test references.
	StateTracked State = "TRACKED"
)

// FileStatus is the classification of one source file.
type FileStatus struct {
	Path   string   `json:"path"`
	State  State    `json:"state"`
	Issues []string `json:"issues,omitempty"`
}

// Report buckets every analyzable file under the source root.
type Report struct {
	Undeclared []FileStatus `json:"undeclared"`
	Registered []FileStatus `json:"registered"`
	Tracked    []FileStatus `json:"tracked"`
}

// Total returns the number of classified files.
func (r *Report) Total() int {
	return len(r.Undeclared) + len(r.Registered) + len(r.Tracked)
}

// skipDirs are build, cache, and VCS directories never walked.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	"dist":          true,
	"build":         true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	"vendor":        true,
}

// fileFacts aggregates what the chain says about one file.
type fileFacts struct {
	created    bool
	edited     bool
	readonly   bool
	artifacts  bool
	testLinked bool
}

// Analyze walks sourceRoot, skipping build/cache/VCS directories and any
// extra doublestar ignore globs, and classifies every file the collector
// registry supports against the active manifests. A nil registry means the
// default collectors.
func Analyze(manifests []*manifest.Manifest, sourceRoot string, ignore []string, reg *collect.Registry) (*Report, error) {
	if reg == nil {
		reg = collect.DefaultRegistry()
	}
	facts := gatherFacts(manifests)

	report := &Report{}
	err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourceRoot, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || ignored(ignore, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !reg.Supports(path) || ignored(ignore, rel) {
			return nil
		}

		status := classify(rel, facts[rel])
		switch status.State {
		case StateUndeclared:
			report.Undeclared = append(report.Undeclared, status)
		case StateRegistered:
			report.Registered = append(report.Registered, status)
		case StateTracked:
			report.Tracked = append(report.Tracked, status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortStatuses(report.Undeclared)
	sortStatuses(report.Registered)
	sortStatuses(report.Tracked)
	return report, nil
}

// gatherFacts folds every active manifest into per-file aggregates. Test
// references come from the normalized validation-command tokens, not only
// from readonlyFiles, so a test named on a pytest command line counts.
func gatherFacts(manifests []*manifest.Manifest) map[string]*fileFacts {
	facts := make(map[string]*fileFacts)
	get := func(file string) *fileFacts {
		file = filepath.ToSlash(file)
		f, ok := facts[file]
		if !ok {
			f = &fileFacts{}
			facts[file] = f
		}
		return f
	}

	for _, m := range manifests {
		for _, f := range m.CreatableFiles {
			get(f).created = true
		}
		for _, f := range m.EditableFiles {
			get(f).edited = true
		}
		for _, f := range m.ReadonlyFiles {
			get(f).readonly = true
		}
		if m.ExpectedArtifacts != nil && len(m.ExpectedArtifacts.Contains) > 0 {
			get(m.ExpectedArtifacts.File).artifacts = true
		}

		testRefs := CommandTestRefs(m.Commands())
		if len(testRefs) == 0 {
			continue
		}
		implFiles := append(append([]string{}, m.CreatableFiles...), m.EditableFiles...)
		for _, f := range implFiles {
			get(f).testLinked = true
		}
		for _, ref := range testRefs {
			get(ref).testLinked = true
		}
	}
	return facts
}

// CommandTestRefs extracts test-file paths from argv tokens. Behavioral
// validation uses the same mining, so a test named only on a pytest command
// line counts there too.
func CommandTestRefs(cmds [][]string) []string {
	var refs []string
	for _, argv := range cmds {
		for _, tok := range argv {
			// Strip pytest-style node selectors: path::test_name.
			if i := strings.Index(tok, "::"); i >= 0 {
				tok = tok[:i]
			}
			if strings.HasPrefix(tok, "-") {
				continue
			}
			if align.IsTestFile(tok) && strings.Contains(tok, ".") {
				refs = append(refs, filepath.ToSlash(tok))
			}
		}
	}
	return refs
}

// classify maps one file's aggregated facts to its state and issues.
func classify(path string, f *fileFacts) FileStatus {
	if f == nil {
		return FileStatus{Path: path, State: StateUndeclared}
	}

	var issues []string
	if !f.created && !f.edited {
		// A test file that only appears in readonlyFiles is exactly where
		// a test file belongs; no penalty.
		if !(f.readonly && align.IsTestFile(path)) {
			issues = append(issues, "referenced only in readonlyFiles")
		}
	}
	if (f.created || f.edited) && !f.artifacts {
		issues = append(issues, "declared without artifacts")
	}
	if f.artifacts && !f.testLinked {
		issues = append(issues, "artifacts declared without behavioral tests")
	}

	if len(issues) == 0 {
		return FileStatus{Path: path, State: StateTracked}
	}
	return FileStatus{Path: path, State: StateRegistered, Issues: issues}
}

func ignored(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func sortStatuses(list []FileStatus) {
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
}
