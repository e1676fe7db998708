// oreon/sentinel · watchthelight <wtl>

package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/oreonproject/sentinel/pkg/threat"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "sentinel.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(url string, level threat.Level, action threat.Action) threat.HistoryEntry {
	return threat.HistoryEntry{
		Timestamp:   1700000000,
		URL:         url,
		Type:        "url",
		ThreatLevel: level,
		Score:       40,
		Indicators:  []string{"Suspicious URL pattern detected"},
		Action:      action,
	}
}

func TestAppendHistory_RoundTrip(t *testing.T) {
	s := setupStore(t)

	e := entry("http://a.test", threat.LevelMedium, threat.ActionScanned)
	e.Status = "ANALYZED"
	if err := s.AppendHistory(e); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	got, err := s.History()
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(History()) = %d, want 1", len(got))
	}
	if got[0].URL != e.URL || got[0].ThreatLevel != e.ThreatLevel ||
		got[0].Action != e.Action || got[0].Status != e.Status {
		t.Errorf("History()[0] = %+v, want %+v", got[0], e)
	}
	if len(got[0].Indicators) != 1 || got[0].Indicators[0] != e.Indicators[0] {
		t.Errorf("Indicators = %v, want %v", got[0].Indicators, e.Indicators)
	}
}

func TestAppendHistory_NewestFirst(t *testing.T) {
	s := setupStore(t)

	for i := 0; i < 3; i++ {
		if err := s.AppendHistory(entry(fmt.Sprintf("http://site-%d.test", i), threat.LevelLow, threat.ActionScanned)); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
	}

	got, err := s.History()
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if got[0].URL != "http://site-2.test" {
		t.Errorf("History()[0].URL = %s, want the most recent entry", got[0].URL)
	}
	if got[2].URL != "http://site-0.test" {
		t.Errorf("History()[2].URL = %s, want the oldest entry", got[2].URL)
	}
}

func TestAppendHistory_Bound(t *testing.T) {
	s := setupStore(t)

	for i := 0; i < HistoryLimit+1; i++ {
		if err := s.AppendHistory(entry(fmt.Sprintf("http://site-%d.test", i), threat.LevelLow, threat.ActionScanned)); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
	}

	got, err := s.History()
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != HistoryLimit {
		t.Fatalf("len(History()) = %d, want %d", len(got), HistoryLimit)
	}
	// The newest stays at the front, the oldest is evicted.
	if got[0].URL != fmt.Sprintf("http://site-%d.test", HistoryLimit) {
		t.Errorf("History()[0].URL = %s, want the 101st entry", got[0].URL)
	}
	for _, e := range got {
		if e.URL == "http://site-0.test" {
			t.Error("oldest entry should have been evicted")
		}
	}
}

func TestStats_Monotonic(t *testing.T) {
	s := setupStore(t)

	appends := []struct {
		level  threat.Level
		action threat.Action
		blocks bool
	}{
		{threat.LevelLow, threat.ActionScanned, false},
		{threat.LevelHigh, threat.ActionScanned, true},
		{threat.LevelMedium, threat.ActionBlocked, true},
		{threat.LevelHigh, threat.ActionAllowed, false}, // allowing HIGH does not count
		{threat.LevelMedium, threat.ActionAllowed, false},
		{threat.LevelHigh, threat.ActionBlocked, true},
	}

	wantBlocked := int64(0)
	for i, a := range appends {
		if err := s.AppendHistory(entry("http://t.test", a.level, a.action)); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
		if a.blocks {
			wantBlocked++
		}

		stats, err := s.Stats()
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalScans != int64(i+1) {
			t.Errorf("step %d: TotalScans = %d, want %d", i, stats.TotalScans, i+1)
		}
		if stats.ThreatsBlocked != wantBlocked {
			t.Errorf("step %d: ThreatsBlocked = %d, want %d", i, stats.ThreatsBlocked, wantBlocked)
		}
		if stats.ThreatsBlocked > stats.TotalScans {
			t.Errorf("step %d: ThreatsBlocked > TotalScans", i)
		}
		if stats.LastUpdated == 0 {
			t.Errorf("step %d: LastUpdated not set", i)
		}
	}
}

func TestAppendHistory_Concurrent(t *testing.T) {
	// Handlers for distinct event sources can append concurrently;
	// the store serializes them so no increment is lost.
	s := setupStore(t)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendHistory(entry("http://c.test", threat.LevelHigh, threat.ActionScanned))
		}()
	}
	wg.Wait()

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalScans != writers {
		t.Errorf("TotalScans = %d, want %d", stats.TotalScans, writers)
	}
	if stats.ThreatsBlocked != writers {
		t.Errorf("ThreatsBlocked = %d, want %d", stats.ThreatsBlocked, writers)
	}
}

func TestCurrentThreat_Slot(t *testing.T) {
	s := setupStore(t)

	got, err := s.CurrentThreat()
	if err != nil {
		t.Fatalf("CurrentThreat() error = %v", err)
	}
	if got != nil {
		t.Fatalf("CurrentThreat() = %+v, want nil before staging", got)
	}

	first := &threat.Event{
		Target:          "http://first.test",
		Status:          threat.StatusSuspicious,
		IsolationMethod: threat.IsolationPattern,
		ThreatScore:     threat.Score{Level: threat.LevelMedium, Score: 40, Confidence: 0.7},
		Timestamp:       1700000000,
	}
	if err := s.SetCurrentThreat(first); err != nil {
		t.Fatalf("SetCurrentThreat() error = %v", err)
	}

	second := &threat.Event{
		Target:          "invoice.scr",
		Status:          threat.StatusDownloadPaused,
		IsolationMethod: threat.IsolationExtension,
		ThreatScore:     threat.Score{Level: threat.LevelHigh, Score: 75, Confidence: 0.8},
		Timestamp:       1700000001,
		DownloadID:      42,
	}
	if err := s.SetCurrentThreat(second); err != nil {
		t.Fatalf("SetCurrentThreat() error = %v", err)
	}

	got, err = s.CurrentThreat()
	if err != nil {
		t.Fatalf("CurrentThreat() error = %v", err)
	}
	if got.Target != second.Target {
		t.Errorf("Target = %s, want the overwriting event", got.Target)
	}
	if got.DownloadID != 42 {
		t.Errorf("DownloadID = %d, want 42", got.DownloadID)
	}
}
