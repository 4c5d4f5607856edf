package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewTaxonomy(t *testing.T) {
	tax, err := NewTaxonomy([]string{"bronchitis", "healthy_breath", "healthy_voice"})
	if err != nil {
		t.Fatalf("new taxonomy: %v", err)
	}
	if tax.Len() != 3 {
		t.Errorf("len = %d, want 3", tax.Len())
	}

	label, err := tax.Label(0)
	if err != nil || label != "bronchitis" {
		t.Errorf("Label(0) = %q, %v; want bronchitis", label, err)
	}
	if _, err := tax.Label(3); err == nil {
		t.Error("expected error for out-of-range index")
	}

	i, ok := tax.Index("healthy_voice")
	if !ok || i != 2 {
		t.Errorf("Index(healthy_voice) = %d, %v; want 2, true", i, ok)
	}
	if _, ok := tax.Index("cough"); ok {
		t.Error("Index(cough) should be absent")
	}
}

func TestNewTaxonomyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
	}{
		{"empty", nil},
		{"blank label", []string{"a", ""}},
		{"duplicate", []string{"a", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTaxonomy(tt.labels); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLabelsReturnsCopy(t *testing.T) {
	tax, err := NewTaxonomy([]string{"a", "b"})
	if err != nil {
		t.Fatalf("new taxonomy: %v", err)
	}
	labels := tax.Labels()
	labels[0] = "mutated"
	if got, _ := tax.Label(0); got != "a" {
		t.Errorf("taxonomy mutated through Labels(): %q", got)
	}
}

func TestLoadTaxonomy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.json")
	if err := os.WriteFile(path, []byte(`["bronchitis","healthy_breath","healthy_voice"]`), 0o644); err != nil {
		t.Fatalf("write labels: %v", err)
	}

	tax, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	if tax.Len() != 3 {
		t.Errorf("len = %d, want 3", tax.Len())
	}
}

func TestLoadTaxonomyErrors(t *testing.T) {
	if _, err := LoadTaxonomy(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTaxonomy(bad); err == nil {
		t.Error("expected error for malformed file")
	}
}
