package experiment

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestHistoryTrack(t *testing.T) {
	h := new(History)
	if h.Len() != 0 {
		t.Fatalf("fresh history has %v steps", h.Len())
	}
	if h.Last() != 0 {
		t.Fatalf("fresh history Last() = %v, want 0", h.Last())
	}

	h.Track(0, 2.3)
	h.Track(1, 1.7)

	if h.Len() != 2 {
		t.Fatalf("wrong length\n\twant(2)\n\thave(%v)", h.Len())
	}
	if h.Last() != 1.7 {
		t.Fatalf("wrong last loss\n\twant(1.7)\n\thave(%v)", h.Last())
	}
}

func TestHistorySaveLoad(t *testing.T) {
	h := new(History)
	for i := 0; i < 5; i++ {
		h.Track(i, float64(5-i))
	}

	path := filepath.Join(t.TempDir(), "history.bin")
	if err := h.Save(path); err != nil {
		t.Fatalf("could not save history: %v", err)
	}

	restored, err := LoadHistory(path)
	if err != nil {
		t.Fatalf("could not load history: %v", err)
	}
	if restored.Len() != h.Len() {
		t.Fatalf("wrong length\n\twant(%v)\n\thave(%v)", h.Len(),
			restored.Len())
	}
	for i := range h.Loss {
		if restored.Loss[i] != h.Loss[i] || restored.Steps[i] != h.Steps[i] {
			t.Errorf("entry %v differs after round trip", i)
		}
	}
}

func TestEnvReport(t *testing.T) {
	report := EnvReport()
	if report == "" {
		t.Fatal("empty environment report")
	}
	for _, field := range []string{"cores", "avx2", "gomaxprocs"} {
		if !strings.Contains(report, field) {
			t.Errorf("report %q is missing %q", report, field)
		}
	}
}
