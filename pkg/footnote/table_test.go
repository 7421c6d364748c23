package footnote

import (
	"reflect"
	"testing"
)

func TestIndexOf(t *testing.T) {
	tbl := New()
	steps := []struct {
		content string
		want    int
	}{
		{"Report X", 1},
		{"Report Y", 2},
		{"Report X", 1},
		{"report x", 3},
		{"Report X ", 4},
		{"", 5},
		{"Report Y", 2},
	}
	for i, s := range steps {
		if got := tbl.IndexOf(s.content); got != s.want {
			t.Errorf("step %d: IndexOf(%q) = %d, want %d", i, s.content, got, s.want)
		}
	}

	want := []string{"Report X", "Report Y", "report x", "Report X ", ""}
	if got := tbl.Contents(); !reflect.DeepEqual(got, want) {
		t.Errorf("Contents() = %q, want %q", got, want)
	}
	if tbl.Len() != len(want) {
		t.Errorf("Len() = %d", tbl.Len())
	}
}

func TestContentsIsACopy(t *testing.T) {
	tbl := New()
	tbl.IndexOf("a")
	c := tbl.Contents()
	c[0] = "mutated"
	if tbl.Contents()[0] != "a" {
		t.Error("Contents() exposed internal slice")
	}
}

func TestFreshTablePerRender(t *testing.T) {
	first := New()
	first.IndexOf("a")
	first.IndexOf("b")

	second := New()
	if got := second.IndexOf("b"); got != 1 {
		t.Errorf("new table should start at 1, got %d", got)
	}
}
