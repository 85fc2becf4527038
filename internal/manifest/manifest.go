// Package manifest defines the typed task-manifest record and its JSON
// loading. A manifest binds a goal, a set of files, and a list of expected
// code artifacts. All field defaulting happens here, once, at the decode
// boundary; consumers never touch raw JSON.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// TaskType classifies what a manifest's task does to the codebase.
type TaskType string

const (
	TaskCreate   TaskType = "create"
	TaskEdit     TaskType = "edit"
	TaskRefactor TaskType = "refactor"
	TaskSnapshot TaskType = "snapshot"
)

// SchemaVersion is the only manifest schema version this tool accepts.
const SchemaVersion = "1"

// ArtifactType classifies an expected code artifact.
type ArtifactType string

const (
	ArtifactFunction  ArtifactType = "function"
	ArtifactClass     ArtifactType = "class"
	ArtifactAttribute ArtifactType = "attribute"
	ArtifactInterface ArtifactType = "interface"
	ArtifactEnum      ArtifactType = "enum"
	ArtifactTypeAlias ArtifactType = "type-alias"
	ArtifactNamespace ArtifactType = "namespace"
)

// Arg is one declared parameter of an expected function or method.
type Arg struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	HasDefault bool   `json:"hasDefault,omitempty"`
}

// UnmarshalJSON accepts either an object form {"name":..,"type":..} or a bare
// string holding the parameter name. Older manifests use the string form.
func (a *Arg) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		name, typ, _ := strings.Cut(s, ":")
		a.Name = strings.TrimSpace(name)
		a.Type = strings.TrimSpace(typ)
		return nil
	}
	type alias Arg
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Arg(v)
	return nil
}

// Artifact is one expected code element. Identity is (file, class, name);
// the file comes from the enclosing ExpectedArtifacts block.
type Artifact struct {
	Type          ArtifactType `json:"type"`
	Name          string       `json:"name"`
	Class         string       `json:"class,omitempty"`
	Args          []Arg        `json:"args,omitempty"`
	Returns       string       `json:"returns,omitempty"`
	Bases         []string     `json:"bases,omitempty"`
	AttributeType string       `json:"attributeType,omitempty"`
}

// Key returns the class-qualified identity of the artifact within its file.
func (a Artifact) Key() string {
	if a.Class != "" {
		return a.Class + "." + a.Name
	}
	return a.Name
}

// Private reports whether the artifact is exempt from declaration checking.
// Underscore-prefixed names are implementation details by convention.
func (a Artifact) Private() bool {
	return strings.HasPrefix(a.Name, "_")
}

// RequiredArgs counts parameters without a default value.
func (a Artifact) RequiredArgs() int {
	n := 0
	for _, arg := range a.Args {
		if !arg.HasDefault {
			n++
		}
	}
	return n
}

// ExpectedArtifacts names the implementation file a manifest constrains and
// the artifacts that file must contain.
type ExpectedArtifacts struct {
	File     string     `json:"file"`
	Contains []Artifact `json:"contains"`
}

// Manifest is the typed record for one task manifest document.
type Manifest struct {
	// Path is the absolute path the manifest was loaded from. Not part of
	// the JSON document.
	Path string `json:"-"`

	Goal              string             `json:"goal"`
	TaskType          TaskType           `json:"taskType"`
	Version           string             `json:"version,omitempty"`
	Supersedes        []string           `json:"supersedes,omitempty"`
	CreatableFiles    []string           `json:"creatableFiles,omitempty"`
	EditableFiles     []string           `json:"editableFiles,omitempty"`
	ReadonlyFiles     []string           `json:"readonlyFiles,omitempty"`
	ExpectedArtifacts *ExpectedArtifacts `json:"expectedArtifacts,omitempty"`

	// Raw command fields; use Commands() for the normalized argv lists.
	ValidationCommand  json.RawMessage `json:"validationCommand,omitempty"`
	ValidationCommands json.RawMessage `json:"validationCommands,omitempty"`
}

// SchemaError reports a manifest document that cannot be used: malformed
// JSON, a missing required field, or an unsupported schema version. In batch
// contexts the offending manifest is skipped, not fatal.
type SchemaError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("manifest %s: %s", e.Path, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Load reads and decodes a single manifest document. All schema checks
// happen here so every consumer shares identical defaulting semantics.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &SchemaError{Path: path, Reason: "invalid JSON", Err: err}
	}
	m.Path = path

	if m.Goal == "" {
		return nil, &SchemaError{Path: path, Reason: "missing required field: goal"}
	}
	switch m.TaskType {
	case TaskCreate, TaskEdit, TaskRefactor, TaskSnapshot:
	case "":
		return nil, &SchemaError{Path: path, Reason: "missing required field: taskType"}
	default:
		return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("unknown taskType %q", m.TaskType)}
	}
	if m.Version != "" && m.Version != SchemaVersion {
		return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("unsupported version %q", m.Version)}
	}
	if _, err := NormalizeCommands(m.ValidationCommand, m.ValidationCommands); err != nil {
		return nil, &SchemaError{Path: path, Reason: "invalid validation command", Err: err}
	}
	return &m, nil
}

// IsSnapshot reports whether the manifest is a snapshot, either by taskType
// or by the snapshot filename convention.
func (m *Manifest) IsSnapshot() bool {
	if m.TaskType == TaskSnapshot {
		return true
	}
	return snapshotNameRe.MatchString(filepath.Base(m.Path))
}

// References reports whether the manifest mentions the given relative file
// path in any of its file-category lists or as its expected-artifacts file.
func (m *Manifest) References(file string) bool {
	file = filepath.ToSlash(file)
	for _, list := range [][]string{m.CreatableFiles, m.EditableFiles, m.ReadonlyFiles} {
		for _, f := range list {
			if filepath.ToSlash(f) == file {
				return true
			}
		}
	}
	return m.ExpectedArtifacts != nil && filepath.ToSlash(m.ExpectedArtifacts.File) == file
}

// FileCategory reports which category list a file appears in, preferring
// creatable over editable over readonly when a manifest lists it twice.
func (m *Manifest) FileCategory(file string) (Category, bool) {
	file = filepath.ToSlash(file)
	for _, f := range m.CreatableFiles {
		if filepath.ToSlash(f) == file {
			return CategoryCreatable, true
		}
	}
	for _, f := range m.EditableFiles {
		if filepath.ToSlash(f) == file {
			return CategoryEditable, true
		}
	}
	for _, f := range m.ReadonlyFiles {
		if filepath.ToSlash(f) == file {
			return CategoryReadonly, true
		}
	}
	return "", false
}

// Category is the file-category axis of alignment checking.
type Category string

const (
	// CategoryCreatable selects strict checking: found and expected public
	// artifacts must match exactly.
	CategoryCreatable Category = "creatable"
	// CategoryEditable selects permissive checking: expected must be a
	// subset of found.
	CategoryEditable Category = "editable"
	// CategoryReadonly files are never the alignment target; treated
	// permissively when they are anyway.
	CategoryReadonly Category = "readonly"
)

var (
	manifestNameRe = regexp.MustCompile(`^task-(\d+)-.*\.manifest\.json$`)
	snapshotNameRe = regexp.MustCompile(`^task-\d+-snapshot-.*\.manifest\.json$`)
)

// IsManifestFile reports whether a filename follows the task-manifest naming
// convention task-<NNN>-<slug>.manifest.json.
func IsManifestFile(name string) bool {
	return manifestNameRe.MatchString(filepath.Base(name))
}

// TaskNumber extracts the numeric task identifier embedded in a manifest
// filename. Non-manifest or unparseable names order as 0.
func TaskNumber(name string) int {
	m := manifestNameRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// TaskNum is the manifest's own embedded task number.
func (m *Manifest) TaskNum() int { return TaskNumber(m.Path) }
