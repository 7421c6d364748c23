// Package footnote numbers repeated citation texts for one render pass.
package footnote

// Table assigns 1-based footnote numbers to citation contents in the order they
// are first seen. Identical strings share a number; there is no normalization.
// A Table belongs to a single traversal and must not be reused across renders.
type Table struct {
	index    map[string]int
	contents []string
}

// New returns an empty table
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// IndexOf returns the footnote number for content, assigning the next one on first sight
func (t *Table) IndexOf(content string) int {
	if n, ok := t.index[content]; ok {
		return n
	}
	t.contents = append(t.contents, content)
	n := len(t.contents)
	t.index[content] = n
	return n
}

// Contents returns distinct contents in first-occurrence order; element i is footnote i+1
func (t *Table) Contents() []string {
	out := make([]string, len(t.contents))
	copy(out, t.contents)
	return out
}

// Len returns the number of distinct contents seen
func (t *Table) Len() int {
	return len(t.contents)
}
