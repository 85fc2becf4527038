// Package align compares a manifest's expected artifacts against the
// inventory collected from a source file. Two independent axes select the
// comparison: the validation mode (implementation checks declarations,
// behavioral checks usage) and the file category (creatable files are held
// to strict two-way matching, editable files to a permissive subset check).
package align

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"covenant/internal/collect"
	"covenant/internal/manifest"
)

// Mode selects which facts alignment compares against.
type Mode string

const (
	// ModeImplementation checks what the file declares.
	ModeImplementation Mode = "implementation"
	// ModeBehavioral checks what the file exercises.
	ModeBehavioral Mode = "behavioral"
)

// ParseMode validates a mode string from the CLI surface.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeImplementation, ModeBehavioral:
		return Mode(s), nil
	case "":
		return ModeImplementation, nil
	}
	return "", fmt.Errorf("unknown validation mode %q", s)
}

// Kind classifies one alignment finding.
type Kind string

const (
	// KindMissing marks an expected artifact the file does not provide.
	KindMissing Kind = "missing"
	// KindUnexpected marks a public artifact the file declares but the
	// manifest does not.
	KindUnexpected Kind = "unexpected"
	// KindSignatureMismatch marks a declared artifact whose parameters do
	// not cover the expected ones.
	KindSignatureMismatch Kind = "signature-mismatch"
	// KindArgumentCount marks a call site passing fewer arguments than the
	// artifact's required parameters.
	KindArgumentCount Kind = "argument-count"
	// KindTargetNotFound marks a manifest whose implementation file does
	// not exist on disk.
	KindTargetNotFound Kind = "target-not-found"
)

// Error is one alignment finding, scoped to an artifact in a file.
type Error struct {
	File     string `json:"file"`
	Artifact string `json:"artifact"`
	Kind     Kind   `json:"kind"`
	Detail   string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s %q", e.File, e.Kind, e.Artifact)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// TargetNotFound reports a manifest's implementation file missing on disk.
func TargetNotFound(file string) *Error {
	return &Error{File: file, Artifact: file, Kind: KindTargetNotFound, Detail: "implementation file does not exist"}
}

// IsTestFile classifies a path as a test file. The decision is purely
// path-based: a tests directory segment at any depth, or a basename with the
// exact test_ prefix. File contents never influence the answer, so source
// cannot opt out of strict checking by naming a function inside it.
func IsTestFile(p string) bool {
	p = filepath.ToSlash(p)
	dir, base := path.Split(p)
	for _, seg := range strings.Split(dir, "/") {
		if seg == "tests" {
			return true
		}
	}
	return strings.HasPrefix(base, "test_")
}

// Check compares expected artifacts against a collection and returns every
// finding, nil on full alignment. Private artifacts (underscore-prefixed)
// are exempt in both directions, and the strict surplus check is skipped
// for test files.
func Check(expected []manifest.Artifact, col *collect.Collection, file string, mode Mode, category manifest.Category) []*Error {
	var errs []*Error

	for _, art := range expected {
		if art.Private() {
			continue
		}
		var err *Error
		if mode == ModeBehavioral {
			err = checkUsage(art, col, file)
		} else {
			err = checkDeclaration(art, col, file)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if mode == ModeImplementation && category == manifest.CategoryCreatable && !IsTestFile(file) {
		errs = append(errs, surplus(expected, col, file)...)
	}

	return errs
}

// checkDeclaration verifies one expected artifact against declaration facts.
func checkDeclaration(art manifest.Artifact, col *collect.Collection, file string) *Error {
	switch art.Type {
	case manifest.ArtifactClass, manifest.ArtifactInterface, manifest.ArtifactEnum,
		manifest.ArtifactTypeAlias, manifest.ArtifactNamespace:
		if !col.Classes[art.Name] {
			return &Error{File: file, Artifact: art.Name, Kind: KindMissing}
		}
		for _, base := range art.Bases {
			if !containsString(col.ClassBases[art.Name], base) {
				return &Error{
					File: file, Artifact: art.Name, Kind: KindSignatureMismatch,
					Detail: fmt.Sprintf("missing base %s", base),
				}
			}
		}
		return nil

	case manifest.ArtifactFunction:
		var params []collect.Param
		if art.Class != "" {
			if !col.HasMethod(art.Class, art.Name) {
				return &Error{File: file, Artifact: art.Key(), Kind: KindMissing}
			}
			params = col.Methods[art.Class][art.Name]
		} else {
			var ok bool
			params, ok = col.Functions[art.Name]
			if !ok {
				return &Error{File: file, Artifact: art.Name, Kind: KindMissing}
			}
		}
		for _, arg := range art.Args {
			if !hasParam(params, arg.Name) {
				return &Error{
					File: file, Artifact: art.Key(), Kind: KindSignatureMismatch,
					Detail: fmt.Sprintf("missing parameter %s", arg.Name),
				}
			}
		}
		return nil

	case manifest.ArtifactAttribute:
		if !col.HasAttribute(art.Class, art.Name) {
			return &Error{File: file, Artifact: art.Key(), Kind: KindMissing}
		}
		return nil
	}

	// Unknown artifact types pass; the schema gate already warned.
	return nil
}

// checkUsage verifies one expected artifact against usage facts: a call for
// a function, an instantiation for a class, a receiver-method call for a
// method. Attributes carry no usage signal and are skipped.
func checkUsage(art manifest.Artifact, col *collect.Collection, file string) *Error {
	switch art.Type {
	case manifest.ArtifactClass, manifest.ArtifactInterface, manifest.ArtifactEnum,
		manifest.ArtifactTypeAlias, manifest.ArtifactNamespace:
		if !col.UsedClasses[art.Name] {
			return &Error{File: file, Artifact: art.Name, Kind: KindMissing, Detail: "never instantiated"}
		}
		return argumentCount(art, col.UsedArguments[art.Name], art.Name, file)

	case manifest.ArtifactFunction:
		if art.Class != "" {
			if !col.UsedMethodOn(art.Class, art.Name) {
				return &Error{File: file, Artifact: art.Key(), Kind: KindMissing, Detail: "never called"}
			}
			return argumentCount(art, col.UsedArguments[art.Class+"."+art.Name], art.Key(), file)
		}
		if !col.UsedFunctions[art.Name] {
			return &Error{File: file, Artifact: art.Name, Kind: KindMissing, Detail: "never called"}
		}
		return argumentCount(art, col.UsedArguments[art.Name], art.Name, file)
	}

	return nil
}

// argumentCount requires every observed call site to pass at least the
// artifact's required (non-defaulted) parameter count.
func argumentCount(art manifest.Artifact, sites []int, label, file string) *Error {
	required := art.RequiredArgs()
	if required == 0 || len(art.Args) == 0 {
		return nil
	}
	for _, argc := range sites {
		if argc < required {
			// Name the first parameter the short call leaves unbound.
			return &Error{
				File: file, Artifact: label, Kind: KindArgumentCount,
				Detail: fmt.Sprintf("call passes %d of %d required arguments, missing %s", argc, required, art.Args[argc].Name),
			}
		}
	}
	return nil
}

// surplus reports every public declared artifact the manifest does not
// expect. Only strict (creatable, non-test) files reach here.
func surplus(expected []manifest.Artifact, col *collect.Collection, file string) []*Error {
	declared := make(map[string]bool, len(expected))
	for _, art := range expected {
		declared[art.Key()] = true
	}

	var errs []*Error
	report := func(key string) {
		errs = append(errs, &Error{File: file, Artifact: key, Kind: KindUnexpected, Detail: "not declared in manifest"})
	}

	for name := range col.Classes {
		if isPublic(name) && !declared[name] {
			report(name)
		}
	}
	for name := range col.Functions {
		if isPublic(name) && !declared[name] {
			report(name)
		}
	}
	for class, methods := range col.Methods {
		if !isPublic(class) {
			continue
		}
		for name := range methods {
			if isPublic(name) && !declared[class+"."+name] {
				report(class + "." + name)
			}
		}
	}
	for class, attrs := range col.Attributes {
		if class != "" && !isPublic(class) {
			continue
		}
		for _, name := range attrs {
			key := name
			if class != "" {
				key = class + "." + name
			}
			if isPublic(name) && !declared[key] {
				report(key)
			}
		}
	}

	sortErrors(errs)
	return errs
}

func isPublic(name string) bool {
	return !strings.HasPrefix(name, "_")
}

func hasParam(params []collect.Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// sortErrors orders findings by artifact key so map iteration order never
// leaks into reports.
func sortErrors(errs []*Error) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Artifact < errs[j].Artifact })
}
