package live

import (
	"sync"
	"testing"
	"time"

	"worksentry/internal/logging"
	"worksentry/internal/models"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestTracker(now *time.Time) (*Tracker, *Hub) {
	hub := NewHub(8)
	tracker := NewTracker(hub, 600, logging.Discard())
	tracker.SetClock(func() time.Time { return *now })
	return tracker, hub
}

func TestDeriveOfflineAfterThreshold(t *testing.T) {
	state := models.LiveState{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base}

	view := Derive(state, base.Add(650*time.Second), 600)
	if view.StatusCode != models.StatusOffline || view.RemainingSeconds != 0 {
		t.Fatalf("expected offline with 0 remaining, got %s/%d", view.StatusCode, view.RemainingSeconds)
	}
	if view.DelaySeconds != 650 || view.Working {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.ReportedStatus != models.StatusWork {
		t.Fatalf("reported status must be kept, got %s", view.ReportedStatus)
	}
}

func TestDeriveCountdown(t *testing.T) {
	state := models.LiveState{EmployeeCode: "E001", StatusCode: models.StatusFish, LastSeenAt: base}

	view := Derive(state, base.Add(300*time.Second), 600)
	if view.StatusCode != models.StatusFish || view.RemainingSeconds != 300 {
		t.Fatalf("expected fish with 300 remaining, got %s/%d", view.StatusCode, view.RemainingSeconds)
	}
	if !view.Working {
		t.Fatal("employee within threshold is working")
	}

	view = Derive(state, base.Add(600*time.Second), 600)
	if view.StatusCode != models.StatusFish || view.RemainingSeconds != 0 {
		t.Fatalf("delay equal to threshold is not offline, got %s/%d", view.StatusCode, view.RemainingSeconds)
	}
}

func TestUpdateDropsOlderReport(t *testing.T) {
	now := base.Add(time.Minute)
	tracker, _ := newTestTracker(&now)

	if _, ok := tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base.Add(30 * time.Second)}); !ok {
		t.Fatal("first update must apply")
	}
	state, ok := tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusFish, LastSeenAt: base})
	if ok {
		t.Fatal("older update must be dropped")
	}
	if state.StatusCode != models.StatusWork {
		t.Fatalf("expected stored work, got %s", state.StatusCode)
	}

	// одинаковое время принимается
	if _, ok := tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusIdle, LastSeenAt: base.Add(30 * time.Second)}); !ok {
		t.Fatal("update with equal timestamp must apply")
	}
}

func TestWorkEndMarksOffworkUntilStart(t *testing.T) {
	now := base
	tracker, _ := newTestTracker(&now)

	tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base, ReportType: models.ReportWorkStart})
	tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base.Add(time.Minute), ReportType: models.ReportWorkEnd})
	state, _ := tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusNormal, LastSeenAt: base.Add(2 * time.Minute), ReportType: models.ReportHeartbeat})
	if state.StatusCode != models.StatusOffwork || !state.Offwork {
		t.Fatalf("expected offwork after work end, got %+v", state)
	}

	// offwork не переходит в offline
	now = base.Add(3 * time.Hour)
	view, _ := tracker.Get("E001")
	if view.StatusCode != models.StatusOffwork || view.Working {
		t.Fatalf("offwork must not derive offline, got %+v", view)
	}

	state, _ = tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: now, ReportType: models.ReportWorkStart})
	if state.StatusCode != models.StatusWork || state.Offwork {
		t.Fatalf("work start must clear offwork, got %+v", state)
	}
}

func TestSnapshotSortedAndDerived(t *testing.T) {
	now := base.Add(700 * time.Second)
	tracker, _ := newTestTracker(&now)

	tracker.Update(Update{EmployeeCode: "E002", StatusCode: models.StatusWork, LastSeenAt: base.Add(600 * time.Second)})
	tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base})

	snapshot := tracker.Snapshot()
	if len(snapshot) != 2 || snapshot[0].EmployeeCode != "E001" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot[0].StatusCode != models.StatusOffline {
		t.Fatalf("E001 must be offline, got %s", snapshot[0].StatusCode)
	}
	if snapshot[1].StatusCode != models.StatusWork || snapshot[1].RemainingSeconds != 500 {
		t.Fatalf("E002 must be working with 500 remaining, got %+v", snapshot[1])
	}
}

func TestRefreshOfflineAnnouncesOnce(t *testing.T) {
	now := base
	tracker, hub := newTestTracker(&now)
	sub := hub.Subscribe()
	defer sub.Close()

	tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base})
	<-sub.Updates()

	now = base.Add(601 * time.Second)
	if changed := tracker.RefreshOffline(); len(changed) != 1 {
		t.Fatalf("expected one transition, got %d", len(changed))
	}
	if view := <-sub.Updates(); view.StatusCode != models.StatusOffline {
		t.Fatalf("expected offline update, got %s", view.StatusCode)
	}
	if changed := tracker.RefreshOffline(); len(changed) != 0 {
		t.Fatalf("transition must be announced once, got %d", len(changed))
	}
}

func TestRebuildKeepsNewerState(t *testing.T) {
	now := base.Add(time.Hour)
	tracker, _ := newTestTracker(&now)

	tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusFish, LastSeenAt: base.Add(30 * time.Minute)})
	restored := tracker.Rebuild([]models.LiveState{
		{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base},
		{EmployeeCode: "E002", StatusCode: models.StatusBreak, LastSeenAt: base},
		{EmployeeCode: "E003", LastSeenAt: base, Offwork: true},
	})
	if restored != 2 {
		t.Fatalf("expected 2 restored, got %d", restored)
	}
	view, _ := tracker.Get("E001")
	if view.ReportedStatus != models.StatusFish {
		t.Fatalf("rebuild must not overwrite newer state, got %s", view.ReportedStatus)
	}
	view, _ = tracker.Get("E003")
	if view.StatusCode != models.StatusOffwork {
		t.Fatalf("expected offwork, got %s", view.StatusCode)
	}
}

func TestConcurrentUpdatesKeepLatest(t *testing.T) {
	now := base.Add(time.Hour)
	tracker, _ := newTestTracker(&now)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.Update(Update{EmployeeCode: "E001", StatusCode: models.StatusWork, LastSeenAt: base.Add(time.Duration(i) * time.Second)})
		}(i)
	}
	wg.Wait()

	view, _ := tracker.Get("E001")
	if !view.LastSeenAt.Equal(base.Add(99 * time.Second)) {
		t.Fatalf("expected latest report to win, got %s", view.LastSeenAt)
	}
}
