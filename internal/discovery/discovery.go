// Package discovery finds author-written style sheets under "source" directories
// and maps each one to the compiled sibling file the runtime loads.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
)

// SourceDirName is the directory segment that marks author-written style sheets.
const SourceDirName = "source"

var (
	// DefaultExtensions are the recognized style-sheet extensions.
	DefaultExtensions = []string{".css"}

	// DefaultExclude lists directory names never descended into: dependency caches,
	// version control, and the directory housing already-compiled runtime assets.
	DefaultExclude = []string{"node_modules", ".git", "__dropins__"}
)

// SourceFile is a discovered style sheet. Its identity is the absolute, cleaned Path.
type SourceFile struct {
	Path         string // Absolute path to the file
	Root         string // Configured root the file was found under
	RelativePath string // Path relative to Root, for display
}

// OutputPath returns the compiled sibling location for the file.
func (f SourceFile) OutputPath() string {
	return OutputTarget(f.Path)
}

// OutputTarget maps <dir>/source/<name> to <dir>/<name>.
func OutputTarget(sourcePath string) string {
	sourceDir := filepath.Dir(sourcePath)
	return filepath.Join(filepath.Dir(sourceDir), filepath.Base(sourcePath))
}

// Options configures a Discovery. Empty slices select the defaults.
type Options struct {
	Extensions []string
	Exclude    []string
}

// Discovery walks root directories for source style sheets.
type Discovery struct {
	extensions map[string]struct{}
	exclude    map[string]struct{}
}

// New creates a Discovery for the given options.
func New(opts Options) *Discovery {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	excl := opts.Exclude
	if len(excl) == 0 {
		excl = DefaultExclude
	}

	d := &Discovery{
		extensions: make(map[string]struct{}, len(exts)),
		exclude:    make(map[string]struct{}, len(excl)),
	}
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.extensions[ext] = struct{}{}
	}
	for _, name := range excl {
		if name = strings.TrimSpace(name); name != "" {
			d.exclude[name] = struct{}{}
		}
	}
	return d
}

// HasRecognizedExtension reports whether name carries a style-sheet extension.
// Extensions match exactly: "a.CSS" is not a source file under the defaults.
func (d *Discovery) HasRecognizedExtension(name string) bool {
	_, ok := d.extensions[filepath.Ext(name)]
	return ok
}

// IsExcludedDir reports whether a directory with this name is skipped.
func (d *Discovery) IsExcludedDir(name string) bool {
	_, ok := d.exclude[name]
	return ok
}

// IsSourceFile is the scope predicate shared by batch discovery and the watcher.
// rel is relative to a root. It holds when the file has a recognized extension,
// its immediate parent is named "source", no other segment is named "source"
// (discovery never descends into a source directory), and no ancestor directory
// is excluded.
func (d *Discovery) IsSourceFile(rel string) bool {
	rel = filepath.Clean(rel)
	if rel == "." || filepath.IsAbs(rel) || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return false
	}
	if !d.HasRecognizedExtension(rel) {
		return false
	}
	dirs := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	if len(dirs) == 0 || dirs[len(dirs)-1] != SourceDirName {
		return false
	}
	for _, seg := range dirs[:len(dirs)-1] {
		if seg == SourceDirName || d.IsExcludedDir(seg) {
			return false
		}
	}
	return true
}

// Discover walks every root in order and returns the source files found. A missing
// root yields a warning and no files. A path reached through overlapping roots is
// reported once; the same file reached through a symlinked root is a distinct
// SourceFile and shows up in FindCollisions.
func (d *Discovery) Discover(roots []string) []SourceFile {
	var files []SourceFile
	seen := make(map[string]struct{})

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			slog.Warn("Cannot resolve root directory", logfields.Root(root), logfields.Error(err))
			continue
		}
		info, err := os.Stat(absRoot)
		if err != nil || !info.IsDir() {
			slog.Warn("Directory not found", logfields.Root(absRoot), logfields.Error(fmt.Errorf("%w: %s", ErrRootNotFound, absRoot)))
			continue
		}

		found := d.walk(absRoot, absRoot, nil)
		for _, f := range found {
			if _, ok := seen[f.Path]; ok {
				slog.Debug("Skipping source reached through overlapping roots", logfields.Path(f.Path))
				continue
			}
			seen[f.Path] = struct{}{}
			files = append(files, f)
		}
	}
	return files
}

func (d *Discovery) walk(root, dir string, files []SourceFile) []SourceFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Cannot list directory", logfields.Path(dir), logfields.Error(fmt.Errorf("%w: %w", ErrDirReadFailed, err)))
		return files
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		switch {
		case entry.Name() == SourceDirName:
			files = d.collectSourceDir(root, full, files)
		case d.IsExcludedDir(entry.Name()):
			continue
		default:
			files = d.walk(root, full, files)
		}
	}
	return files
}

// collectSourceDir gathers the direct children of a source directory; it does not recurse.
func (d *Discovery) collectSourceDir(root, sourceDir string, files []SourceFile) []SourceFile {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		slog.Warn("Cannot list source directory", logfields.Path(sourceDir), logfields.Error(fmt.Errorf("%w: %w", ErrDirReadFailed, err)))
		return files
	}
	for _, entry := range entries {
		if entry.IsDir() || !d.HasRecognizedExtension(entry.Name()) {
			continue
		}
		full := filepath.Join(sourceDir, entry.Name())
		rel, err := filepath.Rel(root, full)
		if err != nil || !d.IsSourceFile(rel) {
			continue
		}
		files = append(files, SourceFile{Path: full, Root: root, RelativePath: rel})
	}
	return files
}
