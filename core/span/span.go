// Package span defines text spans and the alignment of one annotation
// layer under another.
//
// A span is a half-open offset range [Start, End) over a document's
// text. The spans of one layer are kept sorted by start offset, which
// lets GroupChildren align a fine-grained layer (tokens) under a
// coarser one (sentences, paragraphs) in a single merge pass.
package span

// Span is a half-open offset range over document text.
type Span struct {
	Start int
	End   int
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// Len returns the length of the span in offsets.
func (s Span) Len() int {
	return s.End - s.Start
}

// GroupChildren assigns each child span to the parent span containing
// its start offset. Both inputs must be sorted by start offset.
//
// The result holds one group of child indices per parent, children in
// their original relative order, plus the indices of children no parent
// contains. Every child index appears exactly once across groups and
// orphans. Uncovered children are not an error: the caller decides how
// to treat them.
func GroupChildren(parents, children []Span) (groups [][]int, orphans []int) {
	groups = make([][]int, len(parents))
	orphans = []int{}

	ci := 0
	for pi, parent := range parents {
		group := []int{}
		// Children starting before this parent belong to no one.
		for ci < len(children) && children[ci].Start < parent.Start {
			orphans = append(orphans, ci)
			ci++
		}
		for ci < len(children) && children[ci].Start < parent.End {
			group = append(group, ci)
			ci++
		}
		groups[pi] = group
	}
	for ; ci < len(children); ci++ {
		orphans = append(orphans, ci)
	}
	return groups, orphans
}
