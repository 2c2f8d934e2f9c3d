package store

import (
	"context"
	"testing"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func seedManual(t *testing.T, s Store, year int, mk, model, owner string) int64 {
	t.Helper()
	id, err := s.InsertManual(context.Background(), Manual{
		Year: year, Make: mk, Model: model, Active: true, OwnerID: owner,
	})
	if err != nil {
		t.Fatalf("InsertManual: %v", err)
	}
	return id
}

func TestMemoryLookupSectionsWildcards(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	ford := seedManual(t, s, 2021, "Ford", "F-150", "")
	honda := seedManual(t, s, 2019, "Honda", "Civic", "")

	if err := s.InsertSections(ctx, ford, []Section{
		{Name: "Towing", FirstPage: 10, Length: 5, Level: 1},
		{Name: "Maintenance", FirstPage: 20, Length: 8, Level: 1},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertSections(ctx, honda, []Section{
		{Name: "Audio System", FirstPage: 3, Length: 4, Level: 2},
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter VehicleFilter
		want   int
	}{
		{"all wildcards", VehicleFilter{}, 3},
		{"by make", VehicleFilter{Make: strPtr("Ford")}, 2},
		{"make case-insensitive", VehicleFilter{Make: strPtr("ford")}, 2},
		{"by year", VehicleFilter{Year: intPtr(2019)}, 1},
		{"full identity", VehicleFilter{Year: intPtr(2021), Make: strPtr("Ford"), Model: strPtr("F-150")}, 2},
		{"no match", VehicleFilter{Make: strPtr("Toyota")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.LookupSections(ctx, tt.filter, "")
			if err != nil {
				t.Fatalf("LookupSections: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d sections, want %d", len(got), tt.want)
			}
		})
	}
}

func TestMemoryScope(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	shared := seedManual(t, s, 2020, "Toyota", "Camry", "")
	owned := seedManual(t, s, 2020, "Toyota", "Corolla", "alice")
	other := seedManual(t, s, 2020, "Toyota", "RAV4", "bob")

	for _, id := range []int64{shared, owned, other} {
		if err := s.InsertSections(ctx, id, []Section{{Name: "Intro", FirstPage: 0, Length: 1, Level: 1}}); err != nil {
			t.Fatal(err)
		}
	}

	// Unscoped sees everything.
	secs, err := s.LookupSections(ctx, VehicleFilter{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 3 {
		t.Errorf("unscoped: got %d sections, want 3", len(secs))
	}

	// Scoped sees own rows plus shared rows.
	secs, err = s.LookupSections(ctx, VehicleFilter{}, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 {
		t.Errorf("scoped: got %d sections, want 2", len(secs))
	}

	manuals, err := s.ListManuals(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(manuals) != 2 {
		t.Errorf("ListManuals scoped: got %d, want 2", len(manuals))
	}

	// A scoped caller cannot deactivate another owner's manual.
	if err := s.DeactivateManual(ctx, other, "alice"); err != ErrNotFound {
		t.Errorf("DeactivateManual cross-owner: got %v, want ErrNotFound", err)
	}
}

func TestMemorySoftDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	id := seedManual(t, s, 2022, "Subaru", "Outback", "")
	if err := s.InsertSections(ctx, id, []Section{{Name: "Wipers", FirstPage: 5, Length: 2, Level: 2}}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeactivateManual(ctx, id, ""); err != nil {
		t.Fatalf("DeactivateManual: %v", err)
	}

	// Deactivated manuals drop out of lookups but remain fetchable by ID.
	secs, err := s.LookupSections(ctx, VehicleFilter{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 0 {
		t.Errorf("got %d sections after deactivation, want 0", len(secs))
	}

	man, err := s.GetManual(ctx, id)
	if err != nil {
		t.Fatalf("GetManual after deactivation: %v", err)
	}
	if man.Active {
		t.Error("manual still marked active")
	}

	manuals, err := s.ListManuals(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(manuals) != 0 {
		t.Errorf("ListManuals after deactivation: got %d, want 0", len(manuals))
	}
}

func TestMemoryLookupImagesPageRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	id := seedManual(t, s, 2021, "Ford", "F-150", "")
	if err := s.InsertImages(ctx, id, []Image{
		{Page: 4, X: 10, Y: 10, W: 30, H: 30},
		{Page: 10, X: 5, Y: 5, W: 50, H: 40},
		{Page: 12, X: 0, Y: 0, W: 100, H: 100},
		{Page: 30, X: 20, Y: 20, W: 10, H: 10},
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
	if n != 4 {
		t.Errorf("ImageCount: got %d, want 4", n)
	}
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if _, err := s.GetManual(ctx, 99); err != ErrNotFound {
		t.Errorf("GetManual: got %v, want ErrNotFound", err)
	}
	if err := s.UpdateManualContent(ctx, 99, "/tmp/x.pdf"); err != ErrNotFound {
		t.Errorf("UpdateManualContent: got %v, want ErrNotFound", err)
	}
	if err := s.DeactivateManual(ctx, 99, ""); err != ErrNotFound {
		t.Errorf("DeactivateManual: got %v, want ErrNotFound", err)
	}
}

func TestMemoryClosed(t *testing.T) {
	s := NewMemory()
	s.Close()

	if _, err := s.ListManuals(context.Background(), ""); err != ErrClosed {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
