//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteManualRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.InsertManual(ctx, Manual{
		Year: 2021, Make: "Ford", Model: "F-150", Uplifted: true, Active: true,
	})
	if err != nil {
		t.Fatalf("InsertManual: %v", err)
	}

	got, err := s.GetManual(ctx, id)
	if err != nil {
		t.Fatalf("GetManual: %v", err)
	}
	if got.Year != 2021 || got.Make != "Ford" || got.Model != "F-150" {
		t.Errorf("identity mismatch: %+v", got)
	}
	if !got.Uplifted || !got.Active {
		t.Errorf("flags mismatch: %+v", got)
	}

	if err := s.UpdateManualContent(ctx, id, "/data/manuals/1.pdf"); err != nil {
		t.Fatalf("UpdateManualContent: %v", err)
	}
	got, err = s.GetManual(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentPath != "/data/manuals/1.pdf" {
		t.Errorf("ContentPath = %q", got.ContentPath)
	}
}

func TestSQLiteLookupSections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ford, err := s.InsertManual(ctx, Manual{Year: 2021, Make: "Ford", Model: "F-150", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	honda, err := s.InsertManual(ctx, Manual{Year: 2019, Make: "Honda", Model: "Civic", Active: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.InsertSections(ctx, ford, []Section{
		{Name: "Maintenance", FirstPage: 20, Length: 8, Level: 1},
		{Name: "Towing", FirstPage: 10, Length: 5, Level: 1},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertSections(ctx, honda, []Section{
		{Name: "Audio System", FirstPage: 3, Length: 4, Level: 2},
	}); err != nil {
		t.Fatal(err)
	}

	// Case-insensitive make match, wildcard year and model.
	secs, err := s.LookupSections(ctx, VehicleFilter{Make: strPtr("FORD")}, "")
	if err != nil {
		t.Fatalf("LookupSections: %v", err)
	}
	if len(secs) != 2 {
		t.Fatalf("got %d sections, want 2", len(secs))
	}
	// Ordered by first page within the manual.
	if secs[0].Name != "Towing" || secs[1].Name != "Maintenance" {
		t.Errorf("ordering: %q, %q", secs[0].Name, secs[1].Name)
	}

	secs, err = s.LookupSections(ctx, VehicleFilter{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 3 {
		t.Errorf("wildcard lookup: got %d sections, want 3", len(secs))
	}
}

func TestSQLiteSoftDeleteAndScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	shared, err := s.InsertManual(ctx, Manual{Year: 2020, Make: "Toyota", Model: "Camry", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	owned, err := s.InsertManual(ctx, Manual{Year: 2020, Make: "Toyota", Model: "Corolla", Active: true, OwnerID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertManual(ctx, Manual{Year: 2020, Make: "Toyota", Model: "RAV4", Active: true, OwnerID: "bob"}); err != nil {
		t.Fatal(err)
	}

	manuals, err := s.ListManuals(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(manuals) != 2 {
		t.Errorf("scoped list: got %d manuals, want 2", len(manuals))
	}

	if err := s.DeactivateManual(ctx, shared, ""); err != nil {
		t.Fatalf("DeactivateManual: %v", err)
	}
	manuals, err = s.ListManuals(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(manuals) != 2 {
		t.Errorf("after soft delete: got %d manuals, want 2", len(manuals))
	}

	// Row survives deactivation.
	man, err := s.GetManual(ctx, shared)
	if err != nil {
		t.Fatalf("GetManual after deactivation: %v", err)
	}
	if man.Active {
		t.Error("manual still active")
	}

	if err := s.DeactivateManual(ctx, owned, "bob"); err != ErrNotFound {
		t.Errorf("cross-owner deactivate: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteLookupImages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.InsertManual(ctx, Manual{Year: 2021, Make: "Ford", Model: "F-150", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InsertImages(ctx, id, []Image{
		{Page: 4, X: 10, Y: 10, W: 30, H: 30},
		{Page: 12, X: 0, Y: 0, W: 100, H: 100},
		{Page: 10, X: 5, Y: 5, W: 50, H: 40},
	}); err != nil {
		t.Fatal(err)
	}

	imgs, err := s.LookupImages(ctx, id, 10, 14, "")
	if err != nil {
		t.Fatalf("LookupImages: %v", err)
	}
	if len(imgs) != 2 {
		t.Fatalf("got %d images, want 2", len(imgs))
	}
	if imgs[0].Page != 10 || imgs[1].Page != 12 {
		t.Errorf("pages out of order: %d, %d", imgs[0].Page, imgs[1].Page)
	}

	n, err := s.ImageCount(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ImageCount: got %d, want 3", n)
	}
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	// Migrations already ran inside NewSQLite; a second pass must be a no-op.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
