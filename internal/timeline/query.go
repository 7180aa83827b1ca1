package timeline

import (
	"context"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/models"
)

// Timeline возвращает отчетный таймлайн сотрудника за дату 2006-01-02
func (a *Aggregator) Timeline(ctx context.Context, employeeCode, date string) ([]models.TimelineEntry, error) {
	from, to, err := models.DayWindow(date)
	if err != nil {
		return nil, apperr.Invalid("date", "дата должна быть в формате ГГГГ-ММ-ДД")
	}
	return a.SessionTimeline(ctx, employeeCode, from, to)
}

// SessionTimeline возвращает отчетный таймлайн за произвольное окно [from, to)
func (a *Aggregator) SessionTimeline(ctx context.Context, employeeCode string, from, to time.Time) ([]models.TimelineEntry, error) {
	if employeeCode == "" {
		return nil, apperr.Invalid("employeeCode", "не указан код сотрудника")
	}
	if !to.After(from) {
		return nil, apperr.Invalid("to", "конец интервала должен быть позже начала")
	}

	segments, err := a.store.Segments(ctx, employeeCode, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}

	entries := make([]models.TimelineEntry, 0, len(segments))
	for i := range segments {
		entries = append(entries, entryFor(&segments[i], segments[i].Extent(), from, to))
	}
	return a.overlay(ctx, employeeCode, entries, from, to)
}

// preview возвращает таймлайн активной сессии так, как если бы она закрылась в момент at.
// Вызывается под st.mu
func (a *Aggregator) preview(ctx context.Context, st *employeeState, employeeCode string, at time.Time) ([]models.TimelineEntry, error) {
	if known := st.known(); at.Before(known) {
		at = known
	}
	from := st.session.StartAt

	var segments []models.TimelineSegment
	var err error
	if at.After(from) {
		segments, err = a.store.Segments(ctx, employeeCode, from, at)
		if err != nil {
			return nil, err
		}
	}

	open := st.open()
	entries := make([]models.TimelineEntry, 0, len(segments)+2)
	for i := range segments {
		seg := &segments[i]
		if open != nil && seg.ID == open.ID {
			continue
		}
		entries = append(entries, entryFor(seg, seg.Extent(), from, at))
	}
	if open != nil {
		if a.isGap(open, at) {
			entries = append(entries,
				entryFor(open, open.LastReportAt, from, at),
				models.NewTimelineEntry(models.StatusOffline, models.SourceAgent, "", open.LastReportAt, at))
		} else {
			entries = append(entries, entryFor(open, at, from, at))
		}
	}

	return a.overlay(ctx, employeeCode, entries, from, at)
}

func (a *Aggregator) overlay(ctx context.Context, employeeCode string, entries []models.TimelineEntry, from, to time.Time) ([]models.TimelineEntry, error) {
	if a.overrides == nil {
		return Normalize(entries), nil
	}
	overrides, err := a.overrides.Overrides(ctx, employeeCode, from, to)
	if err != nil {
		return nil, err
	}
	return ApplyOverrides(entries, overrides, from, to), nil
}

func entryFor(seg *models.TimelineSegment, end, from, to time.Time) models.TimelineEntry {
	start, end := clip(seg.StartAt, end, from, to)
	entry := models.NewTimelineEntry(seg.StatusCode, seg.Source, seg.Description, start, end)
	entry.Open = seg.IsOpen()
	return entry
}
