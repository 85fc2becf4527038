package covenant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"covenant/internal/align"
	"covenant/internal/collect"
	"covenant/internal/config"
	"covenant/internal/graph"
	"covenant/internal/manifest"
	"covenant/internal/registry"
	"covenant/internal/track"
)

// Engine orchestrates the covenant pipeline: manifest chain resolution,
// artifact collection, alignment checking, graph building, and file
// tracking. It owns the registry cache; concurrent use is safe.
type Engine struct {
	manifestDir string
	sourceRoot  string
	ignore      []string
	registry    *registry.Registry
	collectors  *collect.Registry
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithManifestDir sets the directory holding task manifests.
func WithManifestDir(dir string) Option {
	return func(e *Engine) { e.manifestDir = dir }
}

// WithSourceRoot sets the root of the source tree.
func WithSourceRoot(root string) Option {
	return func(e *Engine) { e.sourceRoot = root }
}

// WithIgnore adds doublestar globs excluded from tracking analysis.
func WithIgnore(globs ...string) Option {
	return func(e *Engine) { e.ignore = append(e.ignore, globs...) }
}

// WithCollectors replaces the default language collectors.
func WithCollectors(reg *collect.Registry) Option {
	return func(e *Engine) { e.collectors = reg }
}

// WithConfig applies a loaded project configuration. Options applied after
// this one override it.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg.ManifestDir != "" {
			e.manifestDir = cfg.ManifestDir
		}
		if cfg.SourceRoot != "" {
			e.sourceRoot = cfg.SourceRoot
		}
		e.ignore = append(e.ignore, cfg.Ignore...)
	}
}

// WithLogger sets the logger used by the watcher and batch scans.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine with the default collectors and an empty registry
// cache.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		manifestDir: "manifests",
		sourceRoot:  ".",
		registry:    registry.New(),
		collectors:  collect.DefaultRegistry(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.manifestDir == "" {
		return nil, fmt.Errorf("covenant: manifest directory is required")
	}
	return e, nil
}

// ValidateOptions selects how a manifest is checked.
type ValidateOptions struct {
	// Mode is implementation (declarations) or behavioral (usage).
	Mode align.Mode
	// UseChain widens the expected artifacts and validation commands to
	// the full active chain touching the manifest's target file.
	UseChain bool
}

// Validate checks one manifest's expected artifacts against the source
// tree. Alignment failures land in the report; only infrastructure
// failures (unreadable manifest, unparseable chain) return an error.
func (e *Engine) Validate(ctx context.Context, manifestPath string, opts ValidateOptions) (*ValidationReport, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	mode := opts.Mode
	if mode == "" {
		mode = align.ModeImplementation
	}

	report := &ValidationReport{
		Manifest: manifestPath,
		Mode:     string(mode),
		Aligned:  true,
	}

	if opts.UseChain {
		cmds, err := e.registry.AggregatedCommands(e.manifestDir, m)
		if err != nil {
			return nil, err
		}
		report.Commands = cmds
	} else {
		report.Commands = m.Commands()
	}

	if m.ExpectedArtifacts == nil {
		return report, nil
	}
	file := m.ExpectedArtifacts.File
	report.File = file

	expected := m.ExpectedArtifacts.Contains
	if opts.UseChain {
		expected, err = e.chainArtifacts(m, file)
		if err != nil {
			return nil, err
		}
	}

	category := e.category(m, file)
	report.Category = string(category)

	var errs []*align.Error
	switch mode {
	case align.ModeBehavioral:
		errs, err = e.checkBehavioral(ctx, m, expected, file, category)
	default:
		errs, err = e.checkImplementation(ctx, expected, file, category)
	}
	if err != nil {
		return nil, err
	}

	report.Errors = errs
	report.Aligned = len(errs) == 0
	return report, nil
}

// checkImplementation collects declarations from the target file itself.
// A create-task target missing on disk is an alignment failure, not an
// infrastructure error.
func (e *Engine) checkImplementation(ctx context.Context, expected []manifest.Artifact, file string, category manifest.Category) ([]*align.Error, error) {
	path := e.resolve(file)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return []*align.Error{align.TargetNotFound(file)}, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	col, err := e.collectors.Collect(ctx, path, collect.ModeDeclaration)
	if err != nil {
		return nil, err
	}
	return align.Check(expected, col, file, align.ModeImplementation, category), nil
}

// checkBehavioral collects usage from the manifest's test files: readonly
// files classified as tests plus test paths named on validation commands.
// All usage facts merge into one collection before checking, so exercising
// an artifact in any associated test satisfies it.
func (e *Engine) checkBehavioral(ctx context.Context, m *manifest.Manifest, expected []manifest.Artifact, file string, category manifest.Category) ([]*align.Error, error) {
	merged := collect.NewCollection()
	for _, test := range e.testFiles(m) {
		path := e.resolve(test)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		col, err := e.collectors.Collect(ctx, path, collect.ModeUsage)
		if err != nil {
			// A broken test file cannot satisfy anything; keep checking
			// against whatever the other test files exercise.
			e.logger.Warn("skipping unparseable test file", "file", test, "error", err)
			continue
		}
		merged.Merge(col)
	}
	return align.Check(expected, merged, file, align.ModeBehavioral, category), nil
}

// testFiles returns the manifest's associated test files in stable order:
// readonly entries first, then paths mined from validation commands. Command
// mining is shared with tracking, so pytest node selectors like
// tests/test_x.py::test_case resolve to the file they name.
func (e *Engine) testFiles(m *manifest.Manifest) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.ToSlash(p)
		if !seen[p] && align.IsTestFile(p) {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, f := range m.ReadonlyFiles {
		add(f)
	}
	for _, ref := range track.CommandTestRefs(m.Commands()) {
		add(ref)
	}
	return out
}

// chainArtifacts unions expected artifacts across every active manifest
// referencing the file, in chain order; a later manifest's declaration of
// the same artifact key wins.
func (e *Engine) chainArtifacts(m *manifest.Manifest, file string) ([]manifest.Artifact, error) {
	related, err := e.registry.RelatedManifests(e.manifestDir, file)
	if err != nil {
		return nil, err
	}
	if len(related) == 0 {
		if m.ExpectedArtifacts == nil {
			return nil, nil
		}
		return m.ExpectedArtifacts.Contains, nil
	}

	index := make(map[string]int)
	var out []manifest.Artifact
	for _, rm := range related {
		if rm.ExpectedArtifacts == nil || filepath.ToSlash(rm.ExpectedArtifacts.File) != file {
			continue
		}
		for _, art := range rm.ExpectedArtifacts.Contains {
			if i, ok := index[art.Key()]; ok {
				out[i] = art
				continue
			}
			index[art.Key()] = len(out)
			out = append(out, art)
		}
	}
	return out, nil
}

// category resolves the alignment category of a file, defaulting by task
// type when the manifest's lists do not name it.
func (e *Engine) category(m *manifest.Manifest, file string) manifest.Category {
	if cat, ok := m.FileCategory(file); ok {
		return cat
	}
	if m.TaskType == manifest.TaskCreate {
		return manifest.CategoryCreatable
	}
	return manifest.CategoryEditable
}

// resolve maps a manifest-relative file path onto the source root.
func (e *Engine) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(e.sourceRoot, filepath.FromSlash(file))
}

// ActiveManifests returns the active chain for the engine's manifest
// directory, ascending by task number.
func (e *Engine) ActiveManifests(ctx context.Context) ([]*manifest.Manifest, error) {
	return e.registry.ActiveManifests(e.manifestDir)
}

// AllManifests returns every loadable manifest, superseded ones included.
func (e *Engine) AllManifests(ctx context.Context) ([]*manifest.Manifest, error) {
	return e.registry.AllManifests(e.manifestDir)
}

// RegistryIssues returns the non-fatal findings from chain resolution.
func (e *Engine) RegistryIssues() ([]registry.Issue, error) {
	return e.registry.Issues(e.manifestDir)
}

// BuildGraph assembles the knowledge graph from the active chain.
func (e *Engine) BuildGraph(ctx context.Context) (*graph.Graph, error) {
	return graph.NewBuilder(e.registry).Build(e.manifestDir)
}

// SaveGraph builds the graph and persists it to a SQLite database at
// dbPath, creating the schema when needed.
func (e *Engine) SaveGraph(ctx context.Context, dbPath string) (*graph.Graph, error) {
	g, err := e.BuildGraph(ctx)
	if err != nil {
		return nil, err
	}
	store, err := graph.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	if err := store.Save(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Track classifies every source file under the source root against the
// active chain.
func (e *Engine) Track(ctx context.Context) (*track.Report, error) {
	active, err := e.registry.ActiveManifests(e.manifestDir)
	if err != nil {
		return nil, err
	}
	return track.Analyze(active, e.sourceRoot, e.ignore, e.collectors)
}

// Watch invalidates the registry cache on manifest-directory changes until
// the context is canceled.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := registry.NewWatcher(e.registry, e.logger)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch(e.manifestDir); err != nil {
		return err
	}
	return w.Run(ctx)
}
