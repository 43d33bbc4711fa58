package history

import (
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndRecentRuns(t *testing.T) {
	db := openTestDB(t)

	first := &Run{
		Provider: "google", SourceLang: "en", TargetLang: "zh",
		SourceBytes: 5, TranslatedBytes: 6, LatencyMs: 420,
		Outcome: "success",
	}
	if err := db.SaveRun(first); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if first.ID == 0 {
		t.Error("SaveRun did not fill in ID")
	}

	second := &Run{
		Provider: "deepl", SourceLang: "en", TargetLang: "zh",
		SourceBytes: 100, LatencyMs: 90,
		Outcome: "failed", ErrorKind: "translation-failed",
	}
	if err := db.SaveRun(second); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := db.RecentRuns(10, 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].ID != second.ID {
		t.Errorf("runs[0].ID = %d, want %d", runs[0].ID, second.ID)
	}
	if runs[0].ErrorKind != "translation-failed" {
		t.Errorf("ErrorKind = %q", runs[0].ErrorKind)
	}
	if runs[1].ErrorKind != "" {
		t.Errorf("success run ErrorKind = %q, want empty", runs[1].ErrorKind)
	}
	if runs[1].Provider != "google" || runs[1].TranslatedBytes != 6 {
		t.Errorf("runs[1] = %+v", runs[1])
	}
}

func TestRecentRunsPagination(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		if err := db.SaveRun(&Run{Provider: "google", SourceLang: "en", TargetLang: "zh", Outcome: "success"}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	page, err := db.RecentRuns(2, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)

	empty, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty.TotalRuns != 0 || empty.SuccessCount != 0 || empty.AvgLatencyMs != 0 {
		t.Errorf("empty stats = %+v", empty)
	}

	for _, r := range []*Run{
		{Provider: "google", SourceLang: "en", TargetLang: "zh", LatencyMs: 100, Outcome: "success"},
		{Provider: "google", SourceLang: "en", TargetLang: "zh", LatencyMs: 300, Outcome: "success"},
		{Provider: "google", SourceLang: "en", TargetLang: "zh", LatencyMs: 9999, Outcome: "failed", ErrorKind: "copy-timeout"},
	} {
		if err := db.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.TotalRuns != 3 || s.SuccessCount != 2 {
		t.Errorf("stats = %+v", s)
	}
	// Failed runs are excluded from the latency mean.
	if s.AvgLatencyMs != 200 {
		t.Errorf("AvgLatencyMs = %v, want 200", s.AvgLatencyMs)
	}
}
