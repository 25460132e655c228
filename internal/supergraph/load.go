package supergraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads a supergraph definition from path. When path is a directory
// every .graphql file below it is read in lexical order and the contents
// are joined into one definition.
func Load(path string) (*Supergraph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("supergraph: %w", err)
	}
	if !info.IsDir() {
		sdl, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("supergraph: %w", err)
		}
		return FromDefinition(string(sdl))
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".graphql" {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("supergraph: walk %q: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("supergraph: no .graphql files in %q", path)
	}
	sort.Strings(files)

	parts := make([]string, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("supergraph: read %q: %w", f, err)
		}
		parts = append(parts, string(content))
	}
	return FromDefinition(strings.Join(parts, "\n"))
}
