package timeline

import (
	"context"
	"testing"
	"time"

	"worksentry/internal/models"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.Local)
}

func TestApplyOverrides(t *testing.T) {
	entries := []models.TimelineEntry{
		models.NewTimelineEntry(models.StatusWork, models.SourceAgent, "code", at(9, 0), at(12, 0)),
	}
	overrides := []models.Override{
		{StartAt: at(11, 30), EndAt: at(13, 0), StatusCode: models.StatusWork, Source: models.SourceManual, Label: "совещание", Fill: true},
		{StartAt: at(10, 0), EndAt: at(10, 30), StatusCode: models.StatusIncident, Source: models.SourceIncident, Label: "сбой сети"},
	}

	got := ApplyOverrides(entries, overrides, at(0, 0), at(23, 59))

	want := []struct {
		status string
		source string
		start  time.Time
		end    time.Time
	}{
		{models.StatusWork, models.SourceAgent, at(9, 0), at(10, 0)},
		{models.StatusIncident, models.SourceIncident, at(10, 0), at(10, 30)},
		{models.StatusWork, models.SourceAgent, at(10, 30), at(11, 30)},
		{models.StatusWork, models.SourceManual, at(11, 30), at(13, 0)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		e := got[i]
		if e.StatusCode != w.status || e.Source != w.source || !e.StartAt.Equal(w.start) || !e.EndAt.Equal(w.end) {
			t.Fatalf("entry %d: got %s/%s %s-%s", i, e.StatusCode, e.Source, e.StartAt.Format(time.TimeOnly), e.EndAt.Format(time.TimeOnly))
		}
	}
	if got[1].Description != "сбой сети" || got[3].Description != "совещание" {
		t.Fatalf("override label must replace description: %+v", got)
	}
	if len(entries) != 1 || !entries[0].EndAt.Equal(at(12, 0)) {
		t.Fatal("agent entries must not be modified")
	}
}

func TestIncidentDoesNotFillEmptyTime(t *testing.T) {
	overrides := []models.Override{
		{StartAt: at(10, 0), EndAt: at(11, 0), StatusCode: models.StatusIncident, Source: models.SourceIncident, Label: "сбой"},
	}
	got := ApplyOverrides(nil, overrides, at(0, 0), at(23, 59))
	if len(got) != 0 {
		t.Fatalf("incident without agent data must not create entries, got %+v", got)
	}
}

func TestAdjustmentWinsOverIncident(t *testing.T) {
	entries := []models.TimelineEntry{
		models.NewTimelineEntry(models.StatusNormal, models.SourceAgent, "", at(9, 0), at(11, 0)),
	}
	overrides := []models.Override{
		{StartAt: at(9, 0), EndAt: at(11, 0), StatusCode: models.StatusWork, Source: models.SourceManual, Label: "выезд", Fill: true},
		{StartAt: at(9, 30), EndAt: at(10, 0), StatusCode: models.StatusIncident, Source: models.SourceIncident, Label: "сбой"},
	}
	got := ApplyOverrides(entries, overrides, at(0, 0), at(23, 59))
	if len(got) != 1 || got[0].Source != models.SourceManual || got[0].DurationSeconds != 7200 {
		t.Fatalf("expected single manual entry, got %+v", got)
	}
}

func TestOverrideClippedToWindow(t *testing.T) {
	overrides := []models.Override{
		{StartAt: at(8, 0), EndAt: at(20, 0), StatusCode: models.StatusWork, Source: models.SourceManual, Label: "командировка", Fill: true},
	}
	got := ApplyOverrides(nil, overrides, at(9, 0), at(18, 0))
	if len(got) != 1 || !got[0].StartAt.Equal(at(9, 0)) || !got[0].EndAt.Equal(at(18, 0)) {
		t.Fatalf("override must be clipped to window, got %+v", got)
	}
}

func TestNormalizeDropsZeroAndCoalesces(t *testing.T) {
	entries := []models.TimelineEntry{
		models.NewTimelineEntry(models.StatusWork, models.SourceAgent, "b", at(10, 0), at(11, 0)),
		models.NewTimelineEntry(models.StatusFish, models.SourceAgent, "", at(9, 30), at(9, 30)),
		models.NewTimelineEntry(models.StatusWork, models.SourceAgent, "a", at(9, 0), at(10, 0)),
	}
	got := Normalize(entries)
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %+v", got)
	}
	if got[0].DurationSeconds != 7200 || got[0].Description != "a" {
		t.Fatalf("unexpected coalesced entry %+v", got[0])
	}
}

func TestTimelineAppliesOverrides(t *testing.T) {
	store := newMemStore()
	overrides := staticOverrides{
		{StartAt: t0.Add(30 * time.Minute), EndAt: t0.Add(time.Hour), StatusCode: models.StatusIncident, Source: models.SourceIncident, Label: "сбой"},
	}
	a := newTestAggregator(store, overrides)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportWorkEnd, t0.Add(2*time.Hour))

	entries, err := a.Timeline(context.Background(), "E001", testDate)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(entries) != 3 || entries[1].StatusCode != models.StatusIncident {
		t.Fatalf("unexpected entries %+v", entries)
	}

	// сырые данные агента не меняются
	segments := store.all("E001")
	if len(segments) != 1 || segments[0].StatusCode != models.StatusWork {
		t.Fatalf("stored segments changed: %+v", segments)
	}
}

func TestTimelineRejectsBadDate(t *testing.T) {
	a := newTestAggregator(newMemStore(), nil)
	if _, err := a.Timeline(context.Background(), "E001", "02.03.2026"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}
