package discovery

import (
	"fmt"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
)

// Collision records distinct source files that would write the same output target.
type Collision struct {
	Target  string
	Sources []SourceFile
}

// Err returns the collision as a classified configuration error.
func (c Collision) Err() error {
	return ferrors.WrapError(fmt.Errorf("%w: %s", ErrOutputCollision, c.Target), ferrors.CategoryConfig,
		"multiple source files map to the same output").
		WithContext("output", c.Target).
		WithContext("sources", c.Paths()).
		Build()
}

// Paths returns the source paths of the group in discovery order.
func (c Collision) Paths() []string {
	paths := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		paths = append(paths, s.Path)
	}
	return paths
}

// FindCollisions groups files by physical output target and returns every group
// with more than one member, in discovery order. Targets are compared after
// resolving symlinks in their directory, so a tree reached through a symlinked
// root collides with the real one.
func FindCollisions(files []SourceFile) []Collision {
	return group(files, PhysicalTarget)
}

// FindCaseConflicts returns groups of files whose targets differ only by case.
// They are distinct on a case-sensitive filesystem and overwrite each other on
// a case-insensitive one, so callers report them as warnings.
func FindCaseConflicts(files []SourceFile) []Collision {
	var conflicts []Collision
	for _, g := range group(files, func(f SourceFile) string { return strings.ToLower(PhysicalTarget(f)) }) {
		first := PhysicalTarget(g.Sources[0])
		for _, s := range g.Sources[1:] {
			if PhysicalTarget(s) != first {
				conflicts = append(conflicts, g)
				break
			}
		}
	}
	return conflicts
}

// PhysicalTarget returns f's output target with symlinks in its directory
// resolved. The unresolved target is returned when resolution fails.
func PhysicalTarget(f SourceFile) string {
	target := f.OutputPath()
	dir, err := filepath.EvalSymlinks(filepath.Dir(target))
	if err != nil {
		return target
	}
	return filepath.Join(dir, filepath.Base(target))
}

func group(files []SourceFile, key func(SourceFile) string) []Collision {
	index := make(map[string]int)
	var groups []Collision
	for _, f := range files {
		k := key(f)
		if i, ok := index[k]; ok {
			groups[i].Sources = append(groups[i].Sources, f)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, Collision{Target: f.OutputPath(), Sources: []SourceFile{f}})
	}

	var out []Collision
	for _, g := range groups {
		if len(g.Sources) > 1 {
			out = append(out, g)
		}
	}
	return out
}
