// Package tree derives a document forest from the flat document set. The flat
// set is the source of truth; everything here is a pure, side-effect-free view
// over it.
package tree

import (
	"sort"

	"leaflet/api/internal/store"
)

// Node is a document with its resolved children, ordered for rendering.
type Node struct {
	store.Document
	Children []Node
	Depth    int
}

// Build groups documents by parent and returns the forest. Documents whose
// parent is not part of the set (dangling or cross-project references) are
// attached as roots. Sibling groups are ordered by sort_order ascending, ties
// broken by creation time then id, so output is deterministic for a given
// input.
func Build(documents []store.Document) []Node {
	present := make(map[string]bool, len(documents))
	for _, doc := range documents {
		present[doc.ID] = true
	}

	children := make(map[string][]store.Document)
	var roots []store.Document
	for _, doc := range documents {
		if doc.ParentID == nil || !present[*doc.ParentID] {
			roots = append(roots, doc)
			continue
		}
		children[*doc.ParentID] = append(children[*doc.ParentID], doc)
	}

	var build func(group []store.Document, depth int) []Node
	build = func(group []store.Document, depth int) []Node {
		sortSiblings(group)
		nodes := make([]Node, 0, len(group))
		for _, doc := range group {
			nodes = append(nodes, Node{
				Document: doc,
				Children: build(children[doc.ID], depth+1),
				Depth:    depth,
			})
		}
		return nodes
	}
	return build(roots, 0)
}

func sortSiblings(group []store.Document) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// NextSortOrder returns max sibling order + 1, or 0 for an empty sibling set.
func NextSortOrder(documents []store.Document, parentID *string) int {
	next := 0
	for _, doc := range documents {
		if !sameParent(doc.ParentID, parentID) {
			continue
		}
		if doc.SortOrder+1 > next {
			next = doc.SortOrder + 1
		}
	}
	return next
}

// WouldCreateCycle reports whether reparenting documentID under newParentID
// would make the document its own ancestor. The walk is bounded by the visited
// set, so it terminates even on corrupt input.
func WouldCreateCycle(documents []store.Document, documentID string, newParentID *string) bool {
	if newParentID == nil {
		return false
	}
	if *newParentID == documentID {
		return true
	}

	parents := make(map[string]*string, len(documents))
	for _, doc := range documents {
		parents[doc.ID] = doc.ParentID
	}

	visited := make(map[string]bool)
	current := *newParentID
	for {
		if visited[current] {
			return false
		}
		visited[current] = true
		parent, ok := parents[current]
		if !ok || parent == nil {
			return false
		}
		if *parent == documentID {
			return true
		}
		current = *parent
	}
}

// SubtreeIDs returns documentID plus every transitive descendant, in
// breadth-first order.
func SubtreeIDs(documents []store.Document, documentID string) []string {
	children := make(map[string][]string, len(documents))
	for _, doc := range documents {
		if doc.ParentID != nil {
			children[*doc.ParentID] = append(children[*doc.ParentID], doc.ID)
		}
	}

	ids := []string{documentID}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
