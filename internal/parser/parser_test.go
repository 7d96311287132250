package parser

import (
	"path/filepath"
	"testing"
	"time"
)

func TestParse_AllFields(t *testing.T) {
	input := []byte("name: Thermodynamics week 3\nsubject: Physics\ndate: 2024-03-01\n")
	m, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "Thermodynamics week 3" || m.Subject != "Physics" {
		t.Errorf("manifest = %+v", m)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !m.Date.Equal(want) {
		t.Errorf("date = %v, want %v", m.Date, want)
	}
}

func TestParse_FreeFormDates(t *testing.T) {
	for _, in := range []string{"March 1, 2024", "2024-03-01T09:30:00Z", "2024/03/01"} {
		m, err := Parse([]byte("date: " + in + "\n"))
		if err != nil {
			t.Errorf("Parse(%q): %v", in, err)
			continue
		}
		if m.Date.Year() != 2024 || m.Date.Month() != time.March || m.Date.Day() != 1 {
			t.Errorf("Parse(%q) date = %v", in, m.Date)
		}
	}
}

func TestParse_TitleAlias(t *testing.T) {
	m, err := Parse([]byte("title: Organic chemistry\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Organic chemistry" {
		t.Errorf("name = %q", m.Name)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte(": invalid: yaml: {{{")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("date: not a date at all\n")); err == nil {
		t.Error("expected date error")
	}
}

func TestParse_Empty(t *testing.T) {
	m, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "" || m.Subject != "" || !m.Date.IsZero() {
		t.Errorf("expected empty manifest, got %+v", m)
	}
}

func TestDefaults(t *testing.T) {
	root := filepath.Join("inbox")
	d := Defaults(filepath.Join(root, "Physics", "week_3-notes.pdf"), root)
	if d.Name != "week 3 notes" || d.Subject != "Physics" {
		t.Errorf("defaults = %+v", d)
	}

	d = Defaults(filepath.Join(root, "loose.pdf"), root)
	if d.Name != "loose" || d.Subject != "" {
		t.Errorf("root defaults = %+v", d)
	}
}

func TestMerge(t *testing.T) {
	m := Manifest{Name: "Given"}
	m.Merge(Manifest{Name: "Fallback", Subject: "Math"})
	if m.Name != "Given" || m.Subject != "Math" {
		t.Errorf("merged = %+v", m)
	}
}

func TestSidecarPath(t *testing.T) {
	if got := SidecarPath(filepath.Join("a", "b.pdf")); got != filepath.Join("a", "b.yaml") {
		t.Errorf("SidecarPath = %q", got)
	}
}
