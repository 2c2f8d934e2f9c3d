// Package ingest turns a manual PDF into store records: it renders each
// page, asks a vision model for headings and diagram regions, builds
// contiguous section boundaries from the heading stream, and persists
// the result.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/dang-hang/fleet-wise-aide/classify"
	"github.com/dang-hang/fleet-wise-aide/llm"
	"github.com/dang-hang/fleet-wise-aide/render"
	"github.com/dang-hang/fleet-wise-aide/store"
)

const hierarchyPrompt = `You are analyzing one page of a vehicle owner's manual.

Identify the section headings visible on this page. For each heading report:
- "section_name": the heading text
- "h_level": heading level, 1 for top-level chapters down to 6
- "starts_on_this_page": true if the section begins on this page, false if the heading is a running header or continuation

Return JSON:
{"headings": [{"section_name": "Engine Oil", "h_level": 2, "starts_on_this_page": true}]}

Return {"headings": []} if the page has no headings.`

const diagramPrompt = `You are analyzing one page of a vehicle owner's manual.

Locate diagrams, illustrations, and figures on this page. For each one report its bounding box as integer percentages of the page dimensions, where x,y is the top-left corner and w,h the extent:

Return JSON:
{"diagrams": [{"x": 10, "y": 25, "w": 40, "h": 30}]}

Return {"diagrams": []} if the page has no diagrams. Ignore logos, icons, and decorative borders.`

// Analyzer runs the per-page vision prompts.
type Analyzer struct {
	provider llm.Provider
	model    string
}

// NewAnalyzer creates an Analyzer backed by the given vision provider.
func NewAnalyzer(provider llm.Provider, model string) *Analyzer {
	return &Analyzer{provider: provider, model: model}
}

type headingReply struct {
	Headings []struct {
		SectionName      string `json:"section_name"`
		HLevel           int    `json:"h_level"`
		StartsOnThisPage bool   `json:"starts_on_this_page"`
	} `json:"headings"`
}

type diagramReply struct {
	Diagrams []struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"diagrams"`
}

// PageHeadings asks the vision model for the headings on one rendered
// page. Malformed replies degrade to no headings.
func (a *Analyzer) PageHeadings(ctx context.Context, pageImage string) ([]Heading, error) {
	raw, err := a.visionCall(ctx, hierarchyPrompt, pageImage)
	if err != nil {
		return nil, err
	}

	var reply headingReply
	if err := classify.ParseStructured(raw, &reply); err != nil {
		slog.Warn("unparseable heading reply, treating page as headingless", "error", err)
		return nil, nil
	}

	headings := make([]Heading, 0, len(reply.Headings))
	for _, h := range reply.Headings {
		headings = append(headings, Heading{
			Name:       h.SectionName,
			Level:      h.HLevel,
			StartsHere: h.StartsOnThisPage,
		})
	}
	return headings, nil
}

// DiagramRegions asks the vision model for diagram bounding boxes on
// one rendered page. Malformed replies degrade to no diagrams.
func (a *Analyzer) DiagramRegions(ctx context.Context, page int, pageImage string) ([]store.Image, error) {
	raw, err := a.visionCall(ctx, diagramPrompt, pageImage)
	if err != nil {
		return nil, err
	}

	var reply diagramReply
	if err := classify.ParseStructured(raw, &reply); err != nil {
		slog.Warn("unparseable diagram reply, treating page as diagramless", "page", page, "error", err)
		return nil, nil
	}

	images := make([]store.Image, 0, len(reply.Diagrams))
	for _, d := range reply.Diagrams {
		if d.W <= 0 || d.H <= 0 {
			continue
		}
		images = append(images, store.Image{Page: page, X: d.X, Y: d.Y, W: d.W, H: d.H})
	}
	return images, nil
}

func (a *Analyzer) visionCall(ctx context.Context, prompt, pageImage string) (string, error) {
	resp, err := a.provider.ChatWithImages(ctx, llm.VisionChatRequest{
		Model: a.model,
		Messages: []llm.VisionMessage{{
			Role: "user",
			Content: []llm.ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &llm.ImageURL{URL: pageImage}},
			},
		}},
		MaxTokens: 1000,
	})
	if err != nil {
		return "", fmt.Errorf("vision call: %w", err)
	}
	return resp.Content, nil
}

// Meta identifies the manual being ingested.
type Meta struct {
	Year     int
	Make     string
	Model    string
	Uplifted bool
	Owner    string
}

// pageAnalyzer lets tests stand in for the vision-backed Analyzer.
type pageAnalyzer interface {
	PageHeadings(ctx context.Context, pageImage string) ([]Heading, error)
	DiagramRegions(ctx context.Context, page int, pageImage string) ([]store.Image, error)
}

// Ingestor drives the full ingestion of one manual.
type Ingestor struct {
	store          store.Store
	opener         render.Opener
	analyzer       pageAnalyzer
	dpi            int
	diagramEvery   int
	keepZeroLength bool
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithDPI sets the rendering resolution for page analysis.
func WithDPI(dpi int) Option {
	return func(i *Ingestor) {
		if dpi > 0 {
			i.dpi = dpi
		}
	}
}

// WithDiagramEvery scans every nth page for diagrams. Zero disables
// diagram detection entirely.
func WithDiagramEvery(n int) Option {
	return func(i *Ingestor) { i.diagramEvery = n }
}

// WithKeepZeroLength keeps zero-length sections produced by multiple
// section starts on one page instead of dropping them.
func WithKeepZeroLength(keep bool) Option {
	return func(i *Ingestor) { i.keepZeroLength = keep }
}

// New creates an Ingestor.
func New(st store.Store, opener render.Opener, analyzer *Analyzer, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:        st,
		opener:       opener,
		analyzer:     analyzer,
		dpi:          150,
		diagramEvery: 2,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest registers the manual, analyzes every page, and persists the
// resulting sections and diagram regions. It returns the new manual's
// ID. Per-page analysis failures degrade to no signals for that page;
// rendering and store failures abort, leaving the registered manual
// row behind for the caller to deactivate or retry.
func (ing *Ingestor) Ingest(ctx context.Context, path string, meta Meta) (int64, error) {
	doc, err := ing.opener.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening manual: %w", err)
	}
	defer doc.Close()

	manualID, err := ing.store.InsertManual(ctx, store.Manual{
		Year:     meta.Year,
		Make:     meta.Make,
		Model:    meta.Model,
		Uplifted: meta.Uplifted,
		Active:   true,
		OwnerID:  meta.Owner,
	})
	if err != nil {
		return 0, fmt.Errorf("registering manual: %w", err)
	}

	pageCount := doc.PageCount()
	slog.Info("ingesting manual",
		"manual_id", manualID, "year", meta.Year, "make", meta.Make,
		"model", meta.Model, "pages", pageCount)

	var signals []PageSignals
	var images []store.Image

	for page := 0; page < pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return manualID, err
		}

		pageImage, err := ing.renderDataURL(doc, page)
		if err != nil {
			return manualID, fmt.Errorf("rendering page %d: %w", page, err)
		}

		// Per-page analysis failures degrade to no signals for that
		// page; the rest of the manual still ingests.
		headings, err := ing.analyzer.PageHeadings(ctx, pageImage)
		if err != nil {
			slog.Warn("page heading analysis failed",
				"manual_id", manualID, "page", page, "error", err)
		}
		if len(headings) > 0 {
			signals = append(signals, PageSignals{Page: page, Headings: headings})
		}

		if ing.diagramEvery > 0 && page%ing.diagramEvery == 0 {
			regions, err := ing.analyzer.DiagramRegions(ctx, page, pageImage)
			if err != nil {
				slog.Warn("diagram scan failed",
					"manual_id", manualID, "page", page, "error", err)
			}
			images = append(images, regions...)
		}
	}

	sections := BuildSections(signals, pageCount, ing.keepZeroLength)

	if err := ing.store.InsertSections(ctx, manualID, sections); err != nil {
		return manualID, fmt.Errorf("storing sections: %w", err)
	}
	if err := ing.store.InsertImages(ctx, manualID, images); err != nil {
		return manualID, fmt.Errorf("storing images: %w", err)
	}

	slog.Info("manual ingested",
		"manual_id", manualID, "sections", len(sections), "images", len(images))
	return manualID, nil
}

func (ing *Ingestor) renderDataURL(doc render.Document, page int) (string, error) {
	img, err := doc.RenderPage(page, ing.dpi)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding page: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
