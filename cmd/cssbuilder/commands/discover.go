package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/cssbuilder/internal/config"
	"git.home.luguber.info/inful/cssbuilder/internal/discovery"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct{}

func (d *DiscoverCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	return RunDiscover(os.Stdout, cfg)
}

// RunDiscover prints each source file and its output target, relative to its
// root. Targets differing only by case are printed as warnings; output
// collisions are returned as a configuration error.
func RunDiscover(w io.Writer, cfg *config.Config) error {
	files := newDiscovery(cfg).Discover(cfg.Roots)
	if len(files) == 0 {
		fmt.Fprintln(w, "No source style sheets found.")
		return nil
	}

	for _, f := range files {
		out, err := filepath.Rel(f.Root, f.OutputPath())
		if err != nil {
			out = f.OutputPath()
		}
		fmt.Fprintf(w, "%s -> %s\n", filepath.Join(filepath.Base(f.Root), f.RelativePath), filepath.Join(filepath.Base(f.Root), out))
	}
	fmt.Fprintf(w, "%d source file(s)\n", len(files))

	for _, c := range discovery.FindCaseConflicts(files) {
		fmt.Fprintf(w, "warning: %d sources write %s, differing only by case\n", len(c.Sources), c.Target)
	}
	if collisions := discovery.FindCollisions(files); len(collisions) > 0 {
		for _, c := range collisions {
			fmt.Fprintf(w, "collision: %d sources write %s\n", len(c.Sources), c.Target)
		}
		return collisions[0].Err()
	}
	return nil
}
