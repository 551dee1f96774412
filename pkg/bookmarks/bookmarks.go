// Package bookmarks supplies the bookmark tree the scan orchestrator
// enumerates. The tree shape mirrors a browser export: folders carry
// children, leaves carry URLs.
package bookmarks

import (
	"context"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
)

// Node is one entry of the bookmark tree. A node with a URL is a bookmark; a
// node without one is a folder whose Children are walked recursively.
type Node struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Provider yields the full bookmark tree.
//
//go:generate mockgen -package mockbookmarks -source=bookmarks.go -destination=mock/mockbookmarks.go *
type Provider interface {
	// Tree returns the root nodes of the bookmark tree.
	Tree(ctx context.Context) ([]*Node, error)
}

// Flatten walks the tree depth-first and returns every URL-bearing node as a
// flat bookmark list, in tree order. Folders contribute nothing themselves.
func Flatten(roots []*Node) []domain.Bookmark {
	var out []domain.Bookmark

	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.URL != "" {
			out = append(out, domain.Bookmark{
				ID:    domain.BookmarkID(n.ID),
				URL:   n.URL,
				Title: n.Title,
			})
		}
		for _, child := range n.Children {
			walk(child)
		}
	}

	for _, root := range roots {
		walk(root)
	}

	return out
}
