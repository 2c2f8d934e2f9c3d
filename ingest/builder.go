package ingest

import "github.com/dang-hang/fleet-wise-aide/store"

// Heading is one heading the vision model detected on a page.
type Heading struct {
	Name       string
	Level      int
	StartsHere bool
}

// PageSignals carries the per-page detections for the boundary
// builder. Pages are 0-indexed.
type PageSignals struct {
	Page     int
	Headings []Heading
}

// BuildSections turns an ordered stream of page signals into a list of
// contiguous, non-overlapping sections covering the manual. Each
// heading that starts on its page opens a section; an open section is
// closed by the next section start, and the last one is closed by the
// end of the document.
//
// Several headings starting on the same page produce zero-length
// sections for all but the last; those are dropped unless
// keepZeroLength is set.
func BuildSections(pages []PageSignals, pageCount int, keepZeroLength bool) []store.Section {
	type open struct {
		name  string
		page  int
		level int
	}

	var starts []open
	for _, p := range pages {
		for _, h := range p.Headings {
			if !h.StartsHere || h.Name == "" {
				continue
			}
			starts = append(starts, open{name: h.Name, page: p.Page, level: clampLevel(h.Level)})
		}
	}

	var sections []store.Section
	for i, s := range starts {
		last := pageCount
		if i+1 < len(starts) {
			last = starts[i+1].page
		}

		length := last - s.page
		if length < 1 && !keepZeroLength {
			continue
		}
		if length < 0 {
			length = 0
		}

		sections = append(sections, store.Section{
			Name:      s.name,
			FirstPage: s.page,
			Length:    length,
			Level:     s.level,
		})
	}
	return sections
}

// clampLevel bounds heading levels to the range used by the schema.
func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}
