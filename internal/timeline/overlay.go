package timeline

import (
	"sort"
	"time"

	"worksentry/internal/models"
)

// ApplyOverrides накладывает корректировки и сбои на записи агента в окне [from, to).
// Сначала сбои, затем корректировки сотрудника, поэтому корректировка важнее сбоя.
// Исходные записи не меняются
func ApplyOverrides(entries []models.TimelineEntry, overrides []models.Override, from, to time.Time) []models.TimelineEntry {
	ordered := make([]models.Override, 0, len(overrides))
	for _, o := range overrides {
		if !o.Fill {
			ordered = append(ordered, o)
		}
	}
	for _, o := range overrides {
		if o.Fill {
			ordered = append(ordered, o)
		}
	}

	result := append([]models.TimelineEntry(nil), entries...)
	for _, o := range ordered {
		start, end := clip(o.StartAt, o.EndAt, from, to)
		if !end.After(start) {
			continue
		}
		result = shadow(result, o, start, end)
	}
	return Normalize(result)
}

func shadow(entries []models.TimelineEntry, o models.Override, start, end time.Time) []models.TimelineEntry {
	next := make([]models.TimelineEntry, 0, len(entries)+2)
	for _, e := range entries {
		if !e.StartAt.Before(end) || !e.EndAt.After(start) {
			next = append(next, e)
			continue
		}
		if e.StartAt.Before(start) {
			left := e.WithBounds(e.StartAt, start)
			left.Open = false
			next = append(next, left)
		}
		if !o.Fill {
			midStart, midEnd := clip(e.StartAt, e.EndAt, start, end)
			next = append(next, models.NewTimelineEntry(o.StatusCode, o.Source, o.Label, midStart, midEnd))
		}
		if e.EndAt.After(end) {
			next = append(next, e.WithBounds(end, e.EndAt))
		}
	}
	if o.Fill {
		next = append(next, models.NewTimelineEntry(o.StatusCode, o.Source, o.Label, start, end))
	}
	return next
}

// Normalize сортирует записи, убирает нулевые и склеивает соседние одинаковые
func Normalize(entries []models.TimelineEntry) []models.TimelineEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartAt.Before(entries[j].StartAt)
	})

	result := make([]models.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		if !e.EndAt.After(e.StartAt) {
			continue
		}
		if n := len(result); n > 0 {
			last := &result[n-1]
			if last.StatusCode == e.StatusCode && last.Source == e.Source && !e.StartAt.After(last.EndAt) {
				if e.EndAt.After(last.EndAt) {
					*last = last.WithBounds(last.StartAt, e.EndAt)
					last.Open = e.Open
				}
				if last.Description == "" {
					last.Description = e.Description
				}
				continue
			}
		}
		result = append(result, e)
	}
	return result
}

func clip(start, end, from, to time.Time) (time.Time, time.Time) {
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	return start, end
}
