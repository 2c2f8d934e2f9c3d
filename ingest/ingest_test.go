package ingest

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/dang-hang/fleet-wise-aide/render"
	"github.com/dang-hang/fleet-wise-aide/store"
)

type fakeDocument struct {
	pages int
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) RenderPage(page, dpi int) (image.Image, error) {
	if page < 0 || page >= d.pages {
		return nil, render.ErrPageOutOfRange
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func (d *fakeDocument) Close() error { return nil }

type fakeOpener struct {
	doc *fakeDocument
	err error
}

func (o *fakeOpener) Open(path string) (render.Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

// fakeAnalyzer serves canned signals keyed by page. Pages are tracked
// by call count since every page is rendered identically.
type fakeAnalyzer struct {
	headings map[int][]Heading
	diagrams map[int][]store.Image

	headingCalls int
	diagramPages []int
	err          error
}

func (a *fakeAnalyzer) PageHeadings(ctx context.Context, pageImage string) ([]Heading, error) {
	if a.err != nil {
		return nil, a.err
	}
	if !strings.HasPrefix(pageImage, "data:image/png;base64,") {
		return nil, errors.New("not a data url")
	}
	page := a.headingCalls
	a.headingCalls++
	return a.headings[page], nil
}

func (a *fakeAnalyzer) DiagramRegions(ctx context.Context, page int, pageImage string) ([]store.Image, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.diagramPages = append(a.diagramPages, page)
	return a.diagrams[page], nil
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	defer st.Close()

	analyzer := &fakeAnalyzer{
		headings: map[int][]Heading{
			0: {{Name: "Introduction", Level: 1, StartsHere: true}},
			3: {{Name: "Dashboard", Level: 1, StartsHere: true}},
		},
		diagrams: map[int][]store.Image{
			0: {{Page: 0, X: 10, Y: 10, W: 40, H: 30}},
			4: {{Page: 4, X: 5, Y: 5, W: 80, H: 60}},
		},
	}

	ing := New(st, &fakeOpener{doc: &fakeDocument{pages: 6}}, nil, WithDiagramEvery(2))
	ing.analyzer = analyzer

	id, err := ing.Ingest(ctx, "manual.pdf", Meta{Year: 2021, Make: "Ford", Model: "F-150"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	man, err := st.GetManual(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !man.Active || man.Make != "Ford" {
		t.Errorf("manual: %+v", man)
	}

	secs, err := st.SectionsByManual(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 {
		t.Fatalf("got %d sections, want 2: %+v", len(secs), secs)
	}
	if secs[0].Name != "Introduction" || secs[0].FirstPage != 0 || secs[0].Length != 3 {
		t.Errorf("section 0: %+v", secs[0])
	}
	if secs[1].Name != "Dashboard" || secs[1].FirstPage != 3 || secs[1].Length != 3 {
		t.Errorf("section 1: %+v", secs[1])
	}

	// Diagram scan runs on even pages only.
	wantPages := []int{0, 2, 4}
	if len(analyzer.diagramPages) != len(wantPages) {
		t.Fatalf("diagram scan pages: %v", analyzer.diagramPages)
	}
	for i, p := range wantPages {
		if analyzer.diagramPages[i] != p {
			t.Errorf("diagram scan pages: %v, want %v", analyzer.diagramPages, wantPages)
		}
	}

	n, err := st.ImageCount(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("ImageCount: got %d, want 2", n)
	}
}

func TestIngestAnalyzerFailureDegrades(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	defer st.Close()

	ing := New(st, &fakeOpener{doc: &fakeDocument{pages: 3}}, nil)
	ing.analyzer = &fakeAnalyzer{err: errors.New("vision backend down")}

	// Per-page analysis failures yield a manual with no sections, not
	// a failed ingestion.
	id, err := ing.Ingest(ctx, "manual.pdf", Meta{Year: 2021, Make: "Ford", Model: "F-150"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	secs, err := st.SectionsByManual(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 0 {
		t.Errorf("got %d sections, want 0", len(secs))
	}
	if _, err := st.GetManual(ctx, id); err != nil {
		t.Errorf("GetManual: %v", err)
	}
}

func TestIngestOpenFailure(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	ing := New(st, &fakeOpener{err: errors.New("no such file")}, nil)
	ing.analyzer = &fakeAnalyzer{}

	if _, err := ing.Ingest(context.Background(), "missing.pdf", Meta{}); err == nil {
		t.Fatal("expected error")
	}

	// Nothing was registered.
	manuals, err := st.ListManuals(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(manuals) != 0 {
		t.Errorf("got %d manuals, want 0", len(manuals))
	}
}

func TestIngestDiagramsDisabled(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	analyzer := &fakeAnalyzer{}
	ing := New(st, &fakeOpener{doc: &fakeDocument{pages: 4}}, nil, WithDiagramEvery(0))
	ing.analyzer = analyzer

	if _, err := ing.Ingest(context.Background(), "manual.pdf", Meta{Year: 2020, Make: "Kia", Model: "Soul"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(analyzer.diagramPages) != 0 {
		t.Errorf("diagram scan ran on pages %v with detection disabled", analyzer.diagramPages)
	}
}
