package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/classifier"
	"worksentry/internal/logging"
	"worksentry/internal/models"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)

const testDate = "2026-03-02"

func newTestAggregator(store *memStore, overrides OverrideSource) *Aggregator {
	a := NewAggregator(store, overrides, logging.Discard())
	a.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	return a
}

func ingest(t *testing.T, a *Aggregator, code, status, reportType string, at time.Time) Result {
	t.Helper()
	result, err := a.Ingest(context.Background(), Report{
		EmployeeCode: code,
		StatusCode:   status,
		Timestamp:    at,
		ReportType:   reportType,
	})
	if err != nil {
		t.Fatalf("Ingest(%s, %s, %s) failed: %v", status, reportType, at.Format(time.TimeOnly), err)
	}
	return result
}

func checkInvariants(t *testing.T, segments []models.TimelineSegment) {
	t.Helper()
	open := 0
	for i, s := range segments {
		if s.IsOpen() {
			open++
		}
		if s.Extent().Before(s.StartAt) {
			t.Fatalf("segment %d ends before it starts", s.ID)
		}
		if i > 0 && s.StartAt.Before(segments[i-1].Extent()) {
			t.Fatalf("segments %d and %d overlap", segments[i-1].ID, s.ID)
		}
	}
	if open > 1 {
		t.Fatalf("expected at most one open segment, got %d", open)
	}
}

func TestTwoWorkReportsProduceOneSegment(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(300*time.Second))

	segments := store.all("E001")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	entries, err := a.Timeline(context.Background(), "E001", testDate)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.StatusCode != models.StatusWork || !e.StartAt.Equal(t0) || !e.EndAt.Equal(t0.Add(300*time.Second)) {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.DurationSeconds != 300 {
		t.Fatalf("expected 300 seconds, got %d", e.DurationSeconds)
	}
}

func TestSameStatusReportsCoalesce(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	ingest(t, a, "E001", models.StatusNormal, models.ReportWorkStart, t0)
	for i := 1; i <= 20; i++ {
		ingest(t, a, "E001", models.StatusNormal, models.ReportHeartbeat, t0.Add(time.Duration(i)*time.Minute))
	}

	segments := store.all("E001")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].DurationSeconds != 20*60 {
		t.Fatalf("expected 1200 seconds, got %d", segments[0].DurationSeconds)
	}
	if got := a.Stats().Coalesced; got != 20 {
		t.Fatalf("expected 20 coalesced reports, got %d", got)
	}
}

func TestStatusChangeRollsSegment(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusFish, models.ReportChange, t0.Add(10*time.Minute))
	ingest(t, a, "E001", models.StatusFish, models.ReportHeartbeat, t0.Add(15*time.Minute))
	res := ingest(t, a, "E001", models.StatusWork, models.ReportChange, t0.Add(20*time.Minute))
	if res.Action != ActionRolled {
		t.Fatalf("expected rolled, got %s", res.Action)
	}

	segments := store.all("E001")
	checkInvariants(t, segments)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	wantStatus := []string{models.StatusWork, models.StatusFish, models.StatusWork}
	for i, s := range segments {
		if s.StatusCode != wantStatus[i] {
			t.Fatalf("segment %d: expected %s, got %s", i, wantStatus[i], s.StatusCode)
		}
	}
	if !segments[0].Extent().Equal(t0.Add(10 * time.Minute)) {
		t.Fatalf("first segment should close at status change, got %s", segments[0].Extent())
	}
	if segments[1].DurationSeconds != 600 {
		t.Fatalf("fish segment should last until next change, got %d", segments[1].DurationSeconds)
	}
}

func TestWorkStartForceClosesPreviousSession(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	first := ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(time.Minute))
	second := ingest(t, a, "E001", models.StatusNormal, models.ReportWorkStart, t0.Add(2*time.Minute))

	if second.ForceClosed == nil || second.ForceClosed.ID != first.Session.ID {
		t.Fatalf("expected session %d to be force-closed", first.Session.ID)
	}
	old := store.session(first.Session.ID)
	if old.Status != models.SessionForceEnded || old.EndAt == nil || !old.EndAt.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("unexpected old session %+v", old)
	}

	segments := store.all("E001")
	checkInvariants(t, segments)
	if !segments[0].Extent().Equal(t0.Add(2 * time.Minute)) {
		t.Fatalf("previous segment should close at new start, got %s", segments[0].Extent())
	}
	if a.Stats().ForceClosed != 1 {
		t.Fatalf("expected force-closed counter 1, got %d", a.Stats().ForceClosed)
	}
}

func TestStaleReportRejected(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(5*time.Minute))
	applies := store.applies

	_, err := a.Ingest(context.Background(), Report{
		EmployeeCode: "E001",
		StatusCode:   models.StatusFish,
		Timestamp:    t0.Add(2 * time.Minute),
		ReportType:   models.ReportChange,
	})
	if !apperr.IsStale(err) {
		t.Fatalf("expected stale error, got %v", err)
	}
	if store.applies != applies {
		t.Fatal("stale report must not write")
	}
	if a.Stats().StaleDropped != 1 {
		t.Fatalf("expected stale counter 1, got %d", a.Stats().StaleDropped)
	}
	segments := store.all("E001")
	if len(segments) != 1 || segments[0].StatusCode != models.StatusWork {
		t.Fatalf("history changed by stale report: %+v", segments)
	}
}

func TestWorkEndWithoutSessionIsNoop(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	res := ingest(t, a, "E001", models.StatusWork, models.ReportWorkEnd, t0)
	if res.Action != ActionIgnored {
		t.Fatalf("expected ignored, got %s", res.Action)
	}
	if store.applies != 0 {
		t.Fatal("work end without session must not write")
	}
	if a.Stats().IgnoredEnds != 1 {
		t.Fatalf("expected ignored counter 1, got %d", a.Stats().IgnoredEnds)
	}
}

func TestReportsWithoutSessionCreateNothing(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	res := ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0)
	if res.Action != ActionIgnored || len(store.all("E001")) != 0 {
		t.Fatalf("heartbeat without session must be ignored")
	}
}

func TestWorkEndClosesSession(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	start := ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(4*time.Minute))
	res := ingest(t, a, "E001", models.StatusWork, models.ReportWorkEnd, t0.Add(5*time.Minute))

	if res.Action != ActionClosed {
		t.Fatalf("expected closed, got %s", res.Action)
	}
	session := store.session(start.Session.ID)
	if session.Status != models.SessionCompleted || !session.EndAt.Equal(t0.Add(5*time.Minute)) {
		t.Fatalf("unexpected session %+v", session)
	}
	segments := store.all("E001")
	if len(segments) != 1 || segments[0].IsOpen() || segments[0].DurationSeconds != 300 {
		t.Fatalf("unexpected segments %+v", segments)
	}

	// после завершения дня отчеты не создают сегменты
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(6*time.Minute))
	if len(store.all("E001")) != 1 {
		t.Fatal("heartbeat after work end created a segment")
	}
}

func TestSameTimestampIsMerged(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusFish, models.ReportChange, t0)
	ingest(t, a, "E001", models.StatusFish, models.ReportHeartbeat, t0.Add(time.Minute))

	checkInvariants(t, store.all("E001"))

	entries, err := a.Timeline(context.Background(), "E001", testDate)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(entries) != 1 || entries[0].StatusCode != models.StatusFish || entries[0].DurationSeconds != 60 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestOfflineGapInsertsSegment(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)
	a.SetOfflineThreshold(600 * time.Second)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(time.Minute))
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(16*time.Minute))
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(20*time.Minute))

	segments := store.all("E001")
	checkInvariants(t, segments)

	entries, err := a.Timeline(context.Background(), "E001", testDate)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	want := []struct {
		status   string
		duration int64
	}{
		{models.StatusWork, 60},
		{models.StatusOffline, 900},
		{models.StatusWork, 240},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, w := range want {
		if entries[i].StatusCode != w.status || entries[i].DurationSeconds != w.duration {
			t.Fatalf("entry %d: expected %s/%d, got %s/%d", i, w.status, w.duration, entries[i].StatusCode, entries[i].DurationSeconds)
		}
	}
	if a.Stats().OfflineGaps != 1 {
		t.Fatalf("expected one offline gap, got %d", a.Stats().OfflineGaps)
	}
}

func TestClassifyIngestRoundTrip(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)
	rules := classifier.NewRuleSet([]models.ClassificationRule{
		{RuleType: models.RuleBlack, MatchMode: models.MatchProcess, MatchValue: "game.exe", Enabled: true},
	})

	ingest(t, a, "E002", models.StatusWork, models.ReportWorkStart, t0)

	samples := []models.ActivitySample{
		{ProcessName: "game.exe", ReportType: models.ReportChange, Timestamp: t0.Add(10 * time.Minute)},
		{ProcessName: "game.exe", ReportType: models.ReportHeartbeat, Timestamp: t0.Add(15 * time.Minute)},
	}
	var status string
	for _, s := range samples {
		status = classifier.Classify(s, rules, 300)
		ingest(t, a, "E002", status, s.ReportType, s.Timestamp)
	}

	entries, err := a.Timeline(context.Background(), "E002", testDate)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.StatusCode != status || status != models.StatusFish {
		t.Fatalf("expected %s, got %s", status, last.StatusCode)
	}
	if last.DurationSeconds != 300 {
		t.Fatalf("expected span of 300 seconds, got %d", last.DurationSeconds)
	}
}

func TestWriteFailureRetriedAndStateKept(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	store.failNext = 1
	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	if len(store.all("E001")) != 1 {
		t.Fatal("retry should have persisted the segment")
	}

	store.failNext = 5
	_, err := a.Ingest(context.Background(), Report{
		EmployeeCode: "E001",
		StatusCode:   models.StatusFish,
		Timestamp:    t0.Add(time.Minute),
		ReportType:   models.ReportChange,
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	store.failNext = 0

	// состояние в памяти не изменилось, тот же отчет принимается повторно
	res := ingest(t, a, "E001", models.StatusFish, models.ReportChange, t0.Add(time.Minute))
	if res.Action != ActionRolled {
		t.Fatalf("expected rolled after recovery, got %s", res.Action)
	}
	segments := store.all("E001")
	checkInvariants(t, segments)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
}

func TestStateReloadedFromStore(t *testing.T) {
	store := newMemStore()
	first := newTestAggregator(store, nil)
	ingest(t, first, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, first, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(time.Minute))

	second := newTestAggregator(store, nil)
	res := ingest(t, second, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(2*time.Minute))
	if res.Action != ActionExtended {
		t.Fatalf("expected extended after reload, got %s", res.Action)
	}
	if len(store.all("E001")) != 1 {
		t.Fatal("reload must continue the open segment")
	}
}

func TestConcurrentIngestKeepsInvariants(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)
	statuses := []string{models.StatusWork, models.StatusNormal, models.StatusFish}

	var wg sync.WaitGroup
	for e := 0; e < 5; e++ {
		code := fmt.Sprintf("E%03d", e)
		ingest(t, a, code, models.StatusWork, models.ReportWorkStart, t0)
		for i := 1; i <= 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := a.Ingest(context.Background(), Report{
					EmployeeCode: code,
					StatusCode:   statuses[i%len(statuses)],
					Timestamp:    t0.Add(time.Duration(i) * time.Second),
					ReportType:   models.ReportChange,
				})
				if err != nil && !apperr.IsStale(err) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
	}
	wg.Wait()

	for e := 0; e < 5; e++ {
		checkInvariants(t, store.all(fmt.Sprintf("E%03d", e)))
	}
}

// reviewOf - финализатор, сохраняющий сводку таймлайна в итог дня
func reviewOf(seen *[]models.TimelineEntry) Finalizer {
	return func(_ context.Context, session *models.WorkSession, entries []models.TimelineEntry) (Closing, error) {
		if seen != nil {
			*seen = entries
		}
		review := &models.CheckoutReview{
			EmployeeCode:  session.EmployeeCode,
			WorkDate:      session.WorkDate,
			WorkSessionID: session.ID,
			StartAt:       session.StartAt,
			EndAt:         *session.EndAt,
		}
		review.ApplySummary(models.Summarize(entries))
		return Closing{Review: review}, nil
	}
}

func finish(a *Aggregator, code string, at time.Time, finalize Finalizer) (Result, Closing, error) {
	return a.Finish(context.Background(), Report{
		EmployeeCode: code,
		StatusCode:   models.StatusWork,
		Timestamp:    at,
	}, finalize)
}

func TestFinishSeesTimelineUpToCheckout(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	start := ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusBreak, models.ReportBreak, t0.Add(10*time.Minute))
	ingest(t, a, "E001", models.StatusBreak, models.ReportBreak, t0.Add(15*time.Minute))

	var entries []models.TimelineEntry
	result, closing, err := finish(a, "E001", t0.Add(20*time.Minute), reviewOf(&entries))
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if result.Action != ActionClosed || result.Session.ID != start.Session.ID {
		t.Fatalf("unexpected result %+v", result)
	}
	summary := models.Summarize(entries)
	if summary.StatusTotals[models.StatusWork] != 600 || summary.BreakSeconds != 600 {
		t.Fatalf("unexpected totals %+v", summary)
	}

	reviews := store.storedReviews()
	if len(reviews) != 1 || closing.Review == nil || closing.Review.ID != reviews[0].ID {
		t.Fatalf("expected one stored review, got %+v", reviews)
	}
	if reviews[0].WorkSessionID != start.Session.ID {
		t.Fatalf("review must reference closed session, got %d", reviews[0].WorkSessionID)
	}
	sess := store.session(start.Session.ID)
	if sess.IsActive() {
		t.Fatal("session must be closed")
	}
}

func TestFinishRejectedByFinalizerKeepsSessionOpen(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	start := ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	errNeedReason := errors.New("need reason")

	_, _, err := finish(a, "E001", t0.Add(time.Hour), func(context.Context, *models.WorkSession, []models.TimelineEntry) (Closing, error) {
		return Closing{}, errNeedReason
	})
	if !errors.Is(err, errNeedReason) {
		t.Fatalf("expected finalizer error, got %v", err)
	}
	sess := store.session(start.Session.ID)
	if !sess.IsActive() {
		t.Fatal("session must stay open")
	}
	if store.applies != 1 {
		t.Fatalf("nothing must be written, got %d applies", store.applies)
	}

	// повторный отчет с причиной закрывает день
	if _, _, err := finish(a, "E001", t0.Add(time.Hour), reviewOf(nil)); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	sess = store.session(start.Session.ID)
	if sess.IsActive() {
		t.Fatal("session must be closed")
	}
}

func TestFinishWriteFailureStoresNeitherCloseNorReview(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	start := ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	store.failNext = len(a.retryDelays) + 1

	if _, _, err := finish(a, "E001", t0.Add(time.Hour), reviewOf(nil)); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	sess := store.session(start.Session.ID)
	if !sess.IsActive() {
		t.Fatal("session must stay open after failed write")
	}
	if len(store.storedReviews()) != 0 {
		t.Fatal("review must not be stored without close")
	}

	result, closing, err := finish(a, "E001", t0.Add(time.Hour), reviewOf(nil))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.Action != ActionClosed || closing.Review == nil || closing.Review.WorkSessionID != start.Session.ID {
		t.Fatalf("unexpected retry outcome %+v %+v", result, closing.Review)
	}
	if len(store.storedReviews()) != 1 {
		t.Fatalf("expected exactly one review, got %d", len(store.storedReviews()))
	}
}

func TestFinishHoldsReportsUntilClosed(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(4*time.Minute))

	late := make(chan error, 1)
	finalize := func(ctx context.Context, session *models.WorkSession, entries []models.TimelineEntry) (Closing, error) {
		go func() {
			_, err := a.Ingest(context.Background(), Report{
				EmployeeCode: "E001",
				StatusCode:   models.StatusBreak,
				Timestamp:    t0.Add(5 * time.Minute),
				ReportType:   models.ReportBreak,
			})
			late <- err
		}()
		select {
		case err := <-late:
			t.Errorf("report must wait for checkout, got %v", err)
		case <-time.After(50 * time.Millisecond):
		}
		return reviewOf(nil)(ctx, session, entries)
	}

	if _, _, err := finish(a, "E001", t0.Add(10*time.Minute), finalize); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := <-late; !apperr.IsStale(err) {
		t.Fatalf("report older than checkout must be stale, got %v", err)
	}
	for _, s := range store.all("E001") {
		if s.StatusCode == models.StatusBreak {
			t.Fatalf("closed timeline must not change, found %+v", s)
		}
	}
	if reviews := store.storedReviews(); len(reviews) != 1 || reviews[0].BreakSeconds != 0 {
		t.Fatalf("review must match stored timeline, got %+v", reviews)
	}
}

func TestFinishWithoutSessionIsIgnored(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	called := false
	result, closing, err := finish(a, "E001", t0, func(context.Context, *models.WorkSession, []models.TimelineEntry) (Closing, error) {
		called = true
		return Closing{}, nil
	})
	if err != nil || result.Action != ActionIgnored || closing.Review != nil || called {
		t.Fatalf("unexpected outcome %+v %v called=%v", result, err, called)
	}
	if a.Stats().IgnoredEnds != 1 {
		t.Fatalf("expected ignored end counted, got %+v", a.Stats())
	}
}

func TestAutoCloseUsesLastReport(t *testing.T) {
	store := newMemStore()
	a := newTestAggregator(store, nil)

	start := ingest(t, a, "E001", models.StatusWork, models.ReportWorkStart, t0)
	ingest(t, a, "E001", models.StatusWork, models.ReportHeartbeat, t0.Add(time.Minute))

	closed, _, err := a.AutoClose(context.Background(), "E001", t0.Add(30*time.Second), reviewOf(nil))
	if err != nil || closed != nil {
		t.Fatalf("session with recent report must stay open: %v %v", closed, err)
	}

	closed, closing, err := a.AutoClose(context.Background(), "E001", t0.Add(time.Hour), reviewOf(nil))
	if err != nil {
		t.Fatalf("AutoClose failed: %v", err)
	}
	if closed == nil || closed.ID != start.Session.ID || closed.Status != models.SessionAutoClosed {
		t.Fatalf("unexpected closed session %+v", closed)
	}
	if !closed.EndAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected close at last report, got %s", closed.EndAt)
	}
	if closing.Review == nil || closing.Review.StatusTotals[models.StatusWork] != 60 {
		t.Fatalf("expected review stored with close, got %+v", closing.Review)
	}
}

func TestInvalidReportRejected(t *testing.T) {
	a := newTestAggregator(newMemStore(), nil)
	_, err := a.Ingest(context.Background(), Report{EmployeeCode: "E001", StatusCode: "sleeping", Timestamp: t0})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
