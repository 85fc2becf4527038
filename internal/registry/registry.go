// Package registry resolves a directory of task manifests into the
// currently-authoritative chain. A manifest is superseded when any other
// manifest in the directory names it in a supersedes list; the active set is
// everything else, ordered by the task number embedded in the filename.
//
// Resolution results are cached per directory and revalidated against the
// live file set and modification times on every access, so a touched, added,
// or removed manifest always triggers a full reload. The cache is an
// explicit object owned by the caller, not process-global state.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"covenant/internal/manifest"
)

// Issue is a non-fatal finding produced while resolving a directory:
// a manifest that failed to load, an ignored supersedes entry, or a
// supersession cycle.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string { return i.Path + ": " + i.Message }

// Registry caches chain resolution per manifest directory.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*dirCache
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{caches: make(map[string]*dirCache)}
}

// dirCache holds one directory's resolved state. Its mutex guards the
// validity check, reload, and read as one atomic unit, so a reader never
// observes a reload in progress.
type dirCache struct {
	mu         sync.Mutex
	loaded     bool
	manifests  map[string]*manifest.Manifest // abs path → parsed manifest
	superseded map[string]bool               // abs path → true
	mtimes     map[string]time.Time
	issues     []Issue
}

// cacheFor returns the cache object for a resolved directory path.
func (r *Registry) cacheFor(dir string) (*dirCache, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve manifest dir: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[abs]
	if !ok {
		c = &dirCache{}
		r.caches[abs] = c
	}
	return c, abs, nil
}

// Invalidate drops the cached state for a directory; the next access
// reloads from disk. Unknown directories are a no-op.
func (r *Registry) Invalidate(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	r.mu.Lock()
	c, ok := r.caches[abs]
	r.mu.Unlock()
	if !ok {
		return
	}
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// AllManifests returns every loadable manifest in the directory, superseded
// ones included, ascending by task number.
func (r *Registry) AllManifests(dir string) ([]*manifest.Manifest, error) {
	return r.resolve(dir, func(c *dirCache) []*manifest.Manifest {
		return c.ordered(false)
	})
}

// ActiveManifests returns the manifests not superseded by any other
// manifest in the directory, ascending by task number.
func (r *Registry) ActiveManifests(dir string) ([]*manifest.Manifest, error) {
	return r.resolve(dir, func(c *dirCache) []*manifest.Manifest {
		return c.ordered(true)
	})
}

// RelatedManifests returns the active manifests that reference the given
// file in any category list or as the expectedArtifacts target.
func (r *Registry) RelatedManifests(dir, file string) ([]*manifest.Manifest, error) {
	return r.resolve(dir, func(c *dirCache) []*manifest.Manifest {
		var out []*manifest.Manifest
		for _, m := range c.ordered(true) {
			if m.References(file) {
				out = append(out, m)
			}
		}
		return out
	})
}

// SupersededSet returns the absolute paths of superseded manifests.
func (r *Registry) SupersededSet(dir string) (map[string]bool, error) {
	c, abs, err := r.cacheFor(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensure(abs); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(c.superseded))
	for k, v := range c.superseded {
		out[k] = v
	}
	return out, nil
}

// Issues returns the non-fatal findings from the directory's last load.
func (r *Registry) Issues(dir string) ([]Issue, error) {
	c, abs, err := r.cacheFor(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensure(abs); err != nil {
		return nil, err
	}
	return append([]Issue(nil), c.issues...), nil
}

// AggregatedCommands returns the manifest's validation commands together
// with the commands of every manifest it transitively supersedes, in chain
// order, exact duplicates removed. Snapshot manifests use this to stand in
// for the chain they replace.
func (r *Registry) AggregatedCommands(dir string, m *manifest.Manifest) ([][]string, error) {
	c, abs, err := r.cacheFor(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensure(abs); err != nil {
		return nil, err
	}

	var cmds [][]string
	seen := make(map[string]bool)
	var visit func(m *manifest.Manifest)
	visit = func(m *manifest.Manifest) {
		if m == nil || seen[m.Path] {
			return
		}
		seen[m.Path] = true
		for _, ref := range m.Supersedes {
			if target, ok := resolveSupersedes(abs, ref); ok {
				visit(c.manifests[target])
			}
		}
		cmds = append(cmds, m.Commands()...)
	}
	visit(m)
	return manifest.DedupCommands(cmds), nil
}

// resolve runs fn against a valid cache under the directory lock.
func (r *Registry) resolve(dir string, fn func(*dirCache) []*manifest.Manifest) ([]*manifest.Manifest, error) {
	c, abs, err := r.cacheFor(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensure(abs); err != nil {
		return nil, err
	}
	return fn(c), nil
}

// ensure reloads the directory unless the cached file set and every cached
// mtime still match the filesystem. Caller holds c.mu.
func (c *dirCache) ensure(dir string) error {
	if c.loaded {
		live, err := scanMtimes(dir)
		if err != nil {
			return err
		}
		if mtimesEqual(c.mtimes, live) {
			return nil
		}
	}
	return c.reload(dir)
}

// reload parses every manifest file in the directory and recomputes the
// superseded set. Unloadable manifests are skipped and reported as issues.
func (c *dirCache) reload(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read manifest dir: %w", err)
	}

	c.manifests = make(map[string]*manifest.Manifest)
	c.superseded = make(map[string]bool)
	c.mtimes = make(map[string]time.Time)
	c.issues = nil

	for _, entry := range entries {
		if entry.IsDir() || !manifest.IsManifestFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		c.mtimes[path] = info.ModTime()

		m, err := manifest.Load(path)
		if err != nil {
			c.issues = append(c.issues, Issue{Path: path, Message: err.Error()})
			continue
		}
		c.manifests[path] = m
	}

	for path, m := range c.manifests {
		for _, ref := range m.Supersedes {
			target, ok := resolveSupersedes(dir, ref)
			if !ok {
				c.issues = append(c.issues, Issue{
					Path:    path,
					Message: fmt.Sprintf("supersedes entry %q resolves outside the manifest directory, ignored", ref),
				})
				continue
			}
			if target == path {
				continue // self-supersession is meaningless
			}
			if _, known := c.manifests[target]; known {
				c.superseded[target] = true
			}
		}
	}

	c.reportCycles(dir)
	c.loaded = true
	return nil
}

// reportCycles surfaces supersession cycles as warnings. Every participant
// of a cycle names another participant, so the plain superseded rule already
// retires all of them; the warning exists so the dead chain is visible.
func (c *dirCache) reportCycles(dir string) {
	color := make(map[string]int) // 0 unvisited, 1 in progress, 2 done
	var visit func(path string)
	visit = func(path string) {
		color[path] = 1
		m := c.manifests[path]
		if m != nil {
			for _, ref := range m.Supersedes {
				target, ok := resolveSupersedes(dir, ref)
				if !ok || target == path {
					continue
				}
				if _, known := c.manifests[target]; !known {
					continue
				}
				switch color[target] {
				case 0:
					visit(target)
				case 1:
					c.issues = append(c.issues, Issue{
						Path:    path,
						Message: fmt.Sprintf("supersession cycle through %s; all participants treated as superseded", filepath.Base(target)),
					})
				}
			}
		}
		color[path] = 2
	}
	paths := make([]string, 0, len(c.manifests))
	for path := range c.manifests {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if color[path] == 0 {
			visit(path)
		}
	}
}

// ordered returns manifests ascending by task number, ties broken by
// filename, optionally dropping superseded ones.
func (c *dirCache) ordered(activeOnly bool) []*manifest.Manifest {
	out := make([]*manifest.Manifest, 0, len(c.manifests))
	for path, m := range c.manifests {
		if activeOnly && c.superseded[path] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].TaskNum(), out[j].TaskNum()
		if ni != nj {
			return ni < nj
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// resolveSupersedes normalizes a supersedes entry against the manifest
// directory. Entries escaping the directory are rejected; supersession
// bookkeeping never blocks a validation run over a stray path.
func resolveSupersedes(dir, ref string) (string, bool) {
	ref = filepath.FromSlash(ref)
	if !filepath.IsAbs(ref) {
		ref = filepath.Join(dir, ref)
	}
	ref = filepath.Clean(ref)
	if filepath.Dir(ref) != filepath.Clean(dir) {
		return "", false
	}
	return ref, true
}

func scanMtimes(dir string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}
	live := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() || !manifest.IsManifestFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		live[filepath.Join(dir, entry.Name())] = info.ModTime()
	}
	return live, nil
}

func mtimesEqual(cached, live map[string]time.Time) bool {
	if len(cached) != len(live) {
		return false
	}
	for path, mt := range cached {
		lt, ok := live[path]
		if !ok || !lt.Equal(mt) {
			return false
		}
	}
	return true
}
