package ingest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeManifest(t *testing.T, dir string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				t.Fatal(err)
			}
		}
	}

	path := filepath.Join(dir, "manifest.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving manifest: %v", err)
	}
	return path
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, [][]any{
		{"year", "make", "model", "file", "uplifted"},
		{2021, "Ford", "F-150", "f150.pdf", "yes"},
		{2019, "Honda", "Civic", "/abs/civic.pdf", ""},
	})

	rows, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if rows[0].Year != 2021 || rows[0].Make != "Ford" || rows[0].Model != "F-150" {
		t.Errorf("row 0: %+v", rows[0])
	}
	if !rows[0].Uplifted {
		t.Error("row 0: uplifted flag not parsed")
	}
	if rows[0].File != filepath.Join(dir, "f150.pdf") {
		t.Errorf("relative path not resolved: %q", rows[0].File)
	}

	if rows[1].File != "/abs/civic.pdf" {
		t.Errorf("absolute path mangled: %q", rows[1].File)
	}
	if rows[1].Uplifted {
		t.Error("row 1: uplifted should default to false")
	}
}

func TestReadManifestNoHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, [][]any{
		{2022, "Subaru", "Outback", "outback.pdf"},
	})

	rows, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Make != "Subaru" {
		t.Errorf("row 0: %+v", rows[0])
	}
}

func TestReadManifestBadYear(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, [][]any{
		{"year", "make", "model", "file"},
		{"soon", "Ford", "F-150", "f150.pdf"},
	})

	if _, err := ReadManifest(path); err == nil {
		t.Fatal("expected error for non-numeric year")
	}
}
