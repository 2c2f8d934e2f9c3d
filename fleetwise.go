// Package fleetwise retrieves and answers questions from vehicle
// owner's manuals. Manuals are ingested page by page with a vision
// model into section and diagram records; queries are classified for
// vehicle identity and topics, matched against stored sections, and
// the aggregated excerpts ground a synthesized answer.
package fleetwise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dang-hang/fleet-wise-aide/classify"
	"github.com/dang-hang/fleet-wise-aide/extract"
	"github.com/dang-hang/fleet-wise-aide/geom"
	"github.com/dang-hang/fleet-wise-aide/ingest"
	"github.com/dang-hang/fleet-wise-aide/llm"
	"github.com/dang-hang/fleet-wise-aide/render"
	"github.com/dang-hang/fleet-wise-aide/store"
)

// VehicleIdentity is the year/make/model extracted from a query. Nil
// fields act as wildcards during lookup.
type VehicleIdentity struct {
	Year  *int    `json:"year"`
	Make  *string `json:"make"`
	Model *string `json:"model"`
}

// Empty reports whether no identity field is present.
func (v VehicleIdentity) Empty() bool {
	return v.Year == nil && v.Make == nil && v.Model == nil
}

// String renders the identity for prompts and logs, with wildcards for
// missing fields.
func (v VehicleIdentity) String() string {
	year, mk, model := "any year", "any make", "any model"
	if v.Year != nil {
		year = fmt.Sprintf("%d", *v.Year)
	}
	if v.Make != nil {
		mk = *v.Make
	}
	if v.Model != nil {
		model = *v.Model
	}
	return fmt.Sprintf("%s %s %s", year, mk, model)
}

// SectionRef is one retained section with its relevance score.
type SectionRef struct {
	ID        int64   `json:"id"`
	ManualID  int64   `json:"manual_id"`
	Name      string  `json:"name"`
	FirstPage int     `json:"first_page"`
	LastPage  int     `json:"last_page"`
	Level     int     `json:"level"`
	Score     float64 `json:"score"`
}

// ImageRef is one diagram region attached to a retained section.
type ImageRef struct {
	ID       int64 `json:"id"`
	ManualID int64 `json:"manual_id"`
	Page     int   `json:"page"`
	X        int   `json:"x"`
	Y        int   `json:"y"`
	W        int   `json:"w"`
	H        int   `json:"h"`
}

// RetrievalResult is the output of the query pipeline.
type RetrievalResult struct {
	Vehicle  VehicleIdentity `json:"vehicle"`
	Topics   []string        `json:"topics,omitempty"`
	Sections []SectionRef    `json:"sections"`
	Images   []ImageRef      `json:"images,omitempty"`
	Text     string          `json:"text,omitempty"`
}

// Answer is a synthesized response grounded in retrieved sections.
type Answer struct {
	Text      string          `json:"text"`
	Retrieval RetrievalResult `json:"retrieval"`
}

// ManualDetails is a manual with its section list and image count.
type ManualDetails struct {
	Manual     store.Manual    `json:"manual"`
	Sections   []store.Section `json:"sections"`
	ImageCount int             `json:"image_count"`
}

// ManifestOutcome reports one row of a bulk ingestion.
type ManifestOutcome struct {
	File     string `json:"file"`
	ManualID int64  `json:"manual_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// QueryOption adjusts one Query or Answer call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	maxSections int
	scope       string
}

// WithMaxSections caps the number of retained sections for this call.
func WithMaxSections(n int) QueryOption {
	return func(o *queryOptions) {
		if n > 0 {
			o.maxSections = n
		}
	}
}

// WithScope restricts retrieval to manuals owned by the given caller
// plus shared manuals.
func WithScope(scope string) QueryOption {
	return func(o *queryOptions) { o.scope = scope }
}

// Engine is the retrieval and ingestion surface.
type Engine interface {
	// Query runs the retrieval pipeline: classify the query, match
	// sections, filter by topics, truncate, and aggregate text and
	// images.
	Query(ctx context.Context, query string, opts ...QueryOption) (*RetrievalResult, error)

	// Answer runs Query and synthesizes a grounded response from the
	// retained sections.
	Answer(ctx context.Context, query string, opts ...QueryOption) (*Answer, error)

	// Ingest analyzes a manual PDF and registers it.
	Ingest(ctx context.Context, path string, meta ingest.Meta) (int64, error)

	// IngestManifest bulk-ingests the manuals listed in an xlsx
	// workbook, one outcome per row.
	IngestManifest(ctx context.Context, path string, owner string) ([]ManifestOutcome, error)

	// ExtractRegion crops one percentage region from a manual page.
	ExtractRegion(ctx context.Context, manualID int64, page int, region geom.RegionPct, dpi int) ([]byte, string, error)

	// ExtractRegions crops many regions, skipping failures.
	ExtractRegions(ctx context.Context, manualID int64, reqs []extract.Request, dpi int) ([]extract.Extracted, error)

	ListManuals(ctx context.Context, scope string) ([]store.Manual, error)
	GetManual(ctx context.Context, id int64) (*ManualDetails, error)
	DeleteManual(ctx context.Context, id int64, scope string) error

	// Store exposes the underlying reference store.
	Store() store.Store

	Close() error
}

// vehicleClassifier and textExtractor are seams for tests.
type vehicleClassifier interface {
	Vehicle(ctx context.Context, query string) (classify.Vehicle, error)
	Topics(ctx context.Context, query string) ([]string, error)
}

type textExtractor interface {
	PageRange(path string, first, length int) (string, error)
}

type engine struct {
	cfg        Config
	store      store.Store
	chat       llm.Provider
	classifier vehicleClassifier
	text       textExtractor
	extractor  *extract.Service
	ingestor   *ingest.Ingestor
	manualsDir string
}

// New creates an Engine from configuration. The vision provider is
// optional; without it ingestion returns ErrVisionRequired but
// retrieval works against already-ingested manuals.
func New(cfg Config) (Engine, error) {
	if cfg.MaxSections <= 0 {
		cfg.MaxSections = DefaultConfig().MaxSections
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = DefaultConfig().RenderDPI
	}

	st, err := store.Open(store.Config{Driver: cfg.StoreDriver, Path: cfg.resolveDBPath()})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chat, err := llm.NewProvider(llm.Config(cfg.Chat))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: chat provider: %v", ErrInvalidConfig, err)
	}

	manualsDir := cfg.resolveManualsDir()
	if err := os.MkdirAll(manualsDir, 0755); err != nil {
		st.Close()
		return nil, fmt.Errorf("creating manuals directory: %w", err)
	}

	opener := render.NewFitzOpener()

	e := &engine{
		cfg:        cfg,
		store:      st,
		chat:       chat,
		classifier: classify.New(chat, cfg.Chat.Model),
		text:       render.NewTextExtractor(),
		extractor:  extract.NewService(opener, st, manualsDir),
		manualsDir: manualsDir,
	}

	if cfg.Vision.Provider != "" {
		vision, err := llm.NewProvider(llm.Config(cfg.Vision))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("%w: vision provider: %v", ErrInvalidConfig, err)
		}
		e.ingestor = ingest.New(st, opener, ingest.NewAnalyzer(vision, cfg.Vision.Model),
			ingest.WithDPI(cfg.RenderDPI),
			ingest.WithDiagramEvery(cfg.DiagramEvery),
			ingest.WithKeepZeroLength(cfg.KeepZeroLengthSections),
		)
	}

	return e, nil
}

// resolveManualsDir anchors a relative manuals directory next to the
// database file.
func (c *Config) resolveManualsDir() string {
	dir := c.ManualsDir
	if dir == "" {
		dir = "manuals"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(filepath.Dir(c.resolveDBPath()), dir)
}

func (e *engine) Store() store.Store { return e.store }

func (e *engine) Close() error { return e.store.Close() }

// Query runs the six-stage retrieval pipeline. Classifier failures
// degrade to wildcards; store failures always propagate.
func (e *engine) Query(ctx context.Context, query string, opts ...QueryOption) (*RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	o := queryOptions{maxSections: e.cfg.MaxSections}
	for _, opt := range opts {
		opt(&o)
	}

	vehicle := e.extractVehicle(ctx, query)
	result := &RetrievalResult{Vehicle: vehicle}

	// Nothing to match on: skip the store entirely.
	if vehicle.Empty() {
		slog.Info("query names no vehicle, skipping retrieval", "query", query)
		return result, nil
	}

	candidates, err := e.store.LookupSections(ctx, store.VehicleFilter(vehicle), o.scope)
	if err != nil {
		return nil, fmt.Errorf("looking up sections: %w", err)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	topics := e.extractTopics(ctx, query)
	result.Topics = topics

	kept := filterByTopics(candidates, topics)
	if len(kept) > o.maxSections {
		kept = kept[:o.maxSections]
	}

	e.aggregate(ctx, result, kept, o.scope)
	return result, nil
}

// extractVehicle classifies the query's vehicle identity. Transport
// failures degrade to an empty identity so retrieval fails open.
func (e *engine) extractVehicle(ctx context.Context, query string) VehicleIdentity {
	v, err := e.classifier.Vehicle(ctx, query)
	if err != nil {
		slog.Warn("vehicle classification failed, using wildcards", "error", err)
		return VehicleIdentity{}
	}
	return VehicleIdentity(v)
}

// extractTopics classifies the query's topics. Failures degrade to no
// topic filtering.
func (e *engine) extractTopics(ctx context.Context, query string) []string {
	topics, err := e.classifier.Topics(ctx, query)
	if err != nil {
		slog.Warn("topic classification failed, keeping all sections", "error", err)
		return nil
	}
	return topics
}

type scoredSection struct {
	section store.Section
	score   float64
}

// filterByTopics keeps sections whose names mention a topic. With no
// topics, or when nothing matches, every candidate is kept so vague
// queries still retrieve.
func filterByTopics(candidates []store.Section, topics []string) []scoredSection {
	all := func() []scoredSection {
		out := make([]scoredSection, len(candidates))
		for i, s := range candidates {
			out[i] = scoredSection{section: s, score: 1.0}
		}
		return out
	}

	if len(topics) == 0 {
		return all()
	}

	var kept []scoredSection
	for _, s := range candidates {
		name := strings.ToLower(s.Name)
		for _, topic := range topics {
			if topic != "" && strings.Contains(name, strings.ToLower(topic)) {
				kept = append(kept, scoredSection{section: s, score: 1.0})
				break
			}
		}
	}
	if len(kept) == 0 {
		return all()
	}
	return kept
}

// aggregate fills the result with section refs, excerpt text, and the
// diagram regions falling inside the retained page spans.
func (e *engine) aggregate(ctx context.Context, result *RetrievalResult, kept []scoredSection, scope string) {
	var text strings.Builder

	for _, ks := range kept {
		sec := ks.section
		result.Sections = append(result.Sections, SectionRef{
			ID:        sec.ID,
			ManualID:  sec.ManualID,
			Name:      sec.Name,
			FirstPage: sec.FirstPage,
			LastPage:  sec.LastPage(),
			Level:     sec.Level,
			Score:     ks.score,
		})

		body := e.sectionText(ctx, sec)
		fmt.Fprintf(&text, "\n\n=== %s ===\n%s", sec.Name, body)

		images, err := e.store.LookupImages(ctx, sec.ManualID, sec.FirstPage, sec.LastPage(), scope)
		if err != nil {
			slog.Warn("image lookup failed for section",
				"section", sec.Name, "manual_id", sec.ManualID, "error", err)
			continue
		}
		for _, img := range images {
			result.Images = append(result.Images, ImageRef{
				ID: img.ID, ManualID: img.ManualID, Page: img.Page,
				X: img.X, Y: img.Y, W: img.W, H: img.H,
			})
		}
	}

	result.Text = text.String()
}

// sectionText extracts the section's page span from the manual PDF.
// Extraction failures degrade to an empty excerpt; the section ref is
// still returned.
func (e *engine) sectionText(ctx context.Context, sec store.Section) string {
	man, err := e.store.GetManual(ctx, sec.ManualID)
	if err != nil {
		slog.Warn("manual lookup failed for section text",
			"section", sec.Name, "manual_id", sec.ManualID, "error", err)
		return ""
	}

	path := man.ContentPath
	if path == "" {
		path = filepath.Join(e.manualsDir, fmt.Sprintf("%d.pdf", sec.ManualID))
	}

	text, err := e.text.PageRange(path, sec.FirstPage, sec.Length)
	if err != nil {
		slog.Warn("text extraction failed for section",
			"section", sec.Name, "manual_id", sec.ManualID, "error", err)
		return ""
	}
	return text
}

const answerPromptFmt = `You are a vehicle owner's manual assistant answering for: %s.

Manual excerpts:
%s

Rules:
- Answer only from the excerpts above.
- Cite the section names you drew from.
- If the excerpts do not cover the question, say so plainly.
- Be concise and practical.`

// Answer retrieves and synthesizes a grounded response.
func (e *engine) Answer(ctx context.Context, query string, opts ...QueryOption) (*Answer, error) {
	retrieval, err := e.Query(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	excerpts := retrieval.Text
	if strings.TrimSpace(excerpts) == "" {
		excerpts = "(no manual excerpts were found for this vehicle and question)"
	}

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Model: e.cfg.Chat.Model,
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(answerPromptFmt, retrieval.Vehicle, excerpts)},
			{Role: "user", Content: query},
		},
		MaxTokens: 500,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return &Answer{Text: resp.Content, Retrieval: *retrieval}, nil
}

// Ingest analyzes and registers a manual, then copies the PDF into the
// manuals directory so later text and image extraction can find it.
func (e *engine) Ingest(ctx context.Context, path string, meta ingest.Meta) (int64, error) {
	if e.ingestor == nil {
		return 0, ErrVisionRequired
	}

	id, err := e.ingestor.Ingest(ctx, path, meta)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}

	dst := filepath.Join(e.manualsDir, fmt.Sprintf("%d.pdf", id))
	if err := copyFile(path, dst); err != nil {
		return id, fmt.Errorf("%w: storing manual content: %v", ErrIngestFailed, err)
	}
	if err := e.store.UpdateManualContent(ctx, id, dst); err != nil {
		return id, fmt.Errorf("%w: recording manual content path: %v", ErrIngestFailed, err)
	}
	return id, nil
}

// IngestManifest bulk-ingests every manual a workbook lists. Rows fail
// independently; each outcome carries either the new manual ID or the
// row's error.
func (e *engine) IngestManifest(ctx context.Context, path string, owner string) ([]ManifestOutcome, error) {
	if e.ingestor == nil {
		return nil, ErrVisionRequired
	}

	rows, err := ingest.ReadManifest(path)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ManifestOutcome, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		id, err := e.Ingest(ctx, row.File, ingest.Meta{
			Year: row.Year, Make: row.Make, Model: row.Model,
			Uplifted: row.Uplifted, Owner: owner,
		})
		outcome := ManifestOutcome{File: row.File, ManualID: id}
		if err != nil {
			outcome.Error = err.Error()
			slog.Warn("manifest row failed", "file", row.File, "error", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (e *engine) ExtractRegion(ctx context.Context, manualID int64, page int, region geom.RegionPct, dpi int) ([]byte, string, error) {
	data, format, err := e.extractor.RegionBytes(ctx, manualID, page, region, dpi)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: manual %d", ErrManualNotFound, manualID)
	}
	return data, format, err
}

func (e *engine) ExtractRegions(ctx context.Context, manualID int64, reqs []extract.Request, dpi int) ([]extract.Extracted, error) {
	if _, err := e.store.GetManual(ctx, manualID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: manual %d", ErrManualNotFound, manualID)
		}
		return nil, err
	}
	return e.extractor.Batch(ctx, manualID, reqs, dpi)
}

func (e *engine) ListManuals(ctx context.Context, scope string) ([]store.Manual, error) {
	return e.store.ListManuals(ctx, scope)
}

func (e *engine) GetManual(ctx context.Context, id int64) (*ManualDetails, error) {
	man, err := e.store.GetManual(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: manual %d", ErrManualNotFound, id)
		}
		return nil, err
	}

	sections, err := e.store.SectionsByManual(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := e.store.ImageCount(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ManualDetails{Manual: *man, Sections: sections, ImageCount: count}, nil
}

func (e *engine) DeleteManual(ctx context.Context, id int64, scope string) error {
	err := e.store.DeactivateManual(ctx, id, scope)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: manual %d", ErrManualNotFound, id)
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
