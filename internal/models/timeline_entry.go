package models

import "time"

// TimelineEntry - элемент отчетного таймлайна после наложения корректировок
type TimelineEntry struct {
	StatusCode      string    `json:"statusCode"`
	StatusLabel     string    `json:"statusLabel"`
	StartAt         time.Time `json:"startAt"`
	EndAt           time.Time `json:"endAt"`
	DurationSeconds int64     `json:"durationSeconds"`
	Description     string    `json:"description"`
	Source          string    `json:"source"`
	SourceLabel     string    `json:"sourceLabel"`
	Open            bool      `json:"open"`
}

// NewTimelineEntry строит элемент и вычисляет длительность
func NewTimelineEntry(status, source, description string, start, end time.Time) TimelineEntry {
	return TimelineEntry{
		StatusCode:      status,
		StatusLabel:     StatusLabel(status),
		StartAt:         start,
		EndAt:           end,
		DurationSeconds: secondsBetween(start, end),
		Description:     description,
		Source:          source,
		SourceLabel:     SourceLabel(source),
	}
}

// WithBounds возвращает копию элемента с новыми границами
func (e TimelineEntry) WithBounds(start, end time.Time) TimelineEntry {
	e.StartAt = start
	e.EndAt = end
	e.DurationSeconds = secondsBetween(start, end)
	return e
}

// TimelineSummary - агрегаты таймлайна, которые использует оценка правил
type TimelineSummary struct {
	StatusTotals          map[string]int64 `json:"statusTotals"`
	ProductiveSeconds     int64            `json:"productiveSeconds"`
	BreakSeconds          int64            `json:"breakSeconds"`
	BreakCount            int64            `json:"breakCount"`
	MaxSingleBreakSeconds int64            `json:"maxSingleBreakSeconds"`
}

// Summarize считает агрегаты по упорядоченному таймлайну
func Summarize(entries []TimelineEntry) TimelineSummary {
	summary := TimelineSummary{StatusTotals: map[string]int64{}}
	for _, entry := range entries {
		summary.StatusTotals[entry.StatusCode] += entry.DurationSeconds
		if IsProductive(entry.StatusCode) {
			summary.ProductiveSeconds += entry.DurationSeconds
		}
		if entry.StatusCode == StatusBreak {
			summary.BreakSeconds += entry.DurationSeconds
			summary.BreakCount++
			if entry.DurationSeconds > summary.MaxSingleBreakSeconds {
				summary.MaxSingleBreakSeconds = entry.DurationSeconds
			}
		}
	}
	return summary
}
