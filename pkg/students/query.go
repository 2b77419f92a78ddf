package students

import (
	"strings"
	"unicode/utf8"
)

const (
	// SegmentAll disables the segment filter.
	SegmentAll = "ALL"

	minNameLength = 2
)

// Query is one search request. Build it with NewQuery so the segment is
// already upper-cased and "todos" is folded into SegmentAll.
type Query struct {
	NamePartial string
	Segment     string
}

func NewQuery(namePartial, segment string) Query {
	return Query{
		NamePartial: strings.TrimSpace(namePartial),
		Segment:     normalizeSegment(segment),
	}
}

func normalizeSegment(segment string) string {
	s := strings.ToUpper(strings.TrimSpace(segment))
	switch s {
	case "", "TODOS", SegmentAll:
		return SegmentAll
	}
	return s
}

// tooShort reports whether the query is too broad to send upstream.
func (q Query) tooShort() bool {
	return utf8.RuneCountInString(strings.TrimSpace(q.NamePartial)) < minNameLength
}

// upstreamFilter is the first word of the name; the upstream only filters
// well on a single word.
func (q Query) upstreamFilter() string {
	fields := strings.Fields(q.NamePartial)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
