package bookmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileProvider reads the bookmark tree from a JSON export on disk: either a
// top-level array of nodes or a single root node.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading from the given path. The file is
// re-read on every Tree call so edits between scans are picked up.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Tree implements Provider.
func (p *FileProvider) Tree(_ context.Context) ([]*Node, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("could not read bookmarks file: %w", err)
	}

	var roots []*Node
	if err := json.Unmarshal(data, &roots); err == nil {
		return roots, nil
	}

	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("could not decode bookmarks file: %w", err)
	}

	return []*Node{&root}, nil
}

// Ensure FileProvider conforms to the Provider interface at compile time.
var _ Provider = (*FileProvider)(nil)
