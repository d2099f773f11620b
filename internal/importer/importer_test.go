package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type stubWriter struct {
	items []backend.ProductInput
	err   error
}

func (s *stubWriter) CreateProduct(_ context.Context, in backend.ProductInput) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	s.items = append(s.items, in)
	return domain.Product{Name: in.Name, Price: in.Price}, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `name,description,price,stock,category,image_url
Desk Lamp,Warm light,1000.00,5,Lighting,https://example.com/lamp1.jpg
,,,,,https://example.com/lamp2.jpg
Mug,,500,2,Kitchen,`

	w := &stubWriter{}
	imp := NewCSVImporter(strings.NewReader(csvData), w)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(w.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(w.items))
	}
	first := w.items[0]
	if first.Name != "Desk Lamp" || first.Price != 1000 || first.Stock != 5 || first.Category != "Lighting" {
		t.Fatalf("unexpected product data: %+v", first)
	}
	if len(first.ImageURLs) != 2 {
		t.Fatalf("expected 2 images on first product, got %v", first.ImageURLs)
	}
	if len(w.items[1].ImageURLs) != 0 {
		t.Fatalf("second product should have no images")
	}
}

func TestCSVImporter_RejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"bad price":   "name,price\nLamp,cheap\n",
		"zero price":  "name,price\nLamp,0\n",
		"no name col": "title,price\nLamp,10\n",
		"bad stock":   "name,price,stock\nLamp,10,many\n",
	}
	for name, data := range cases {
		w := &stubWriter{}
		if _, err := NewCSVImporter(strings.NewReader(data), w).Run(context.Background()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if len(w.items) != 0 {
			t.Fatalf("%s: nothing should be created", name)
		}
	}
}

func TestCSVImporter_StopsOnBackendError(t *testing.T) {
	w := &stubWriter{err: errors.New("boom")}
	count, err := NewCSVImporter(strings.NewReader("name,price\nLamp,10\nMug,5\n"), w).Run(context.Background())
	if err == nil || count != 0 {
		t.Fatalf("expected failure on first product, got count=%d err=%v", count, err)
	}
}
