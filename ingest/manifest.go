package ingest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ManifestRow is one manual listed in a bulk-ingestion workbook.
type ManifestRow struct {
	Year     int
	Make     string
	Model    string
	File     string // resolved relative to the manifest location
	Uplifted bool
}

// ReadManifest reads a bulk-ingestion workbook. The first sheet is
// used; the expected columns are year, make, model, file, uplifted,
// with an optional header row. Relative file paths resolve against the
// manifest's own directory.
func ReadManifest(path string) ([]ManifestRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("manifest has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading manifest rows: %w", err)
	}

	baseDir := filepath.Dir(path)
	var out []ManifestRow
	for i, row := range rows {
		if len(row) < 4 {
			continue
		}
		if i == 0 && isHeaderRow(row) {
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("manifest row %d: invalid year %q", i+1, row[0])
		}

		file := strings.TrimSpace(row[3])
		if file == "" {
			return nil, fmt.Errorf("manifest row %d: missing file", i+1)
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}

		r := ManifestRow{
			Year:  year,
			Make:  strings.TrimSpace(row[1]),
			Model: strings.TrimSpace(row[2]),
			File:  file,
		}
		if len(row) > 4 {
			r.Uplifted = parseBool(row[4])
		}
		out = append(out, r)
	}
	return out, nil
}

func isHeaderRow(row []string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(row[0]))
	return err != nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
