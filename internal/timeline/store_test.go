package timeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"worksentry/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// memStore - хранилище в памяти для тестов агрегатора
type memStore struct {
	mu          sync.Mutex
	nextSession uint
	nextSegment uint
	sessions    map[uint]models.WorkSession
	segments    map[uint]models.TimelineSegment
	reviews     []models.CheckoutReview
	records     []models.CheckoutRecord
	failNext    int
	applies     int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uint]models.WorkSession{},
		segments: map[uint]models.TimelineSegment{},
	}
}

func (m *memStore) ActiveSession(_ context.Context, employeeCode string) (*models.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.WorkSession
	for _, s := range m.sessions {
		if s.EmployeeCode != employeeCode || !s.IsActive() {
			continue
		}
		if found == nil || s.StartAt.After(found.StartAt) {
			c := s
			found = &c
		}
	}
	return found, nil
}

func (m *memStore) LatestSegment(_ context.Context, employeeCode string) (*models.TimelineSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.TimelineSegment
	for _, s := range m.segments {
		if s.EmployeeCode != employeeCode {
			continue
		}
		if found == nil || s.StartAt.After(found.StartAt) || (s.StartAt.Equal(found.StartAt) && s.ID > found.ID) {
			c := s
			found = &c
		}
	}
	return found, nil
}

func (m *memStore) Apply(_ context.Context, change *Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return errStoreDown
	}
	m.applies++

	if change.CloseSession != nil {
		m.sessions[change.CloseSession.ID] = *change.CloseSession
	}
	if change.OpenSession != nil {
		m.nextSession++
		change.OpenSession.ID = m.nextSession
		m.sessions[change.OpenSession.ID] = *change.OpenSession
	}
	for _, seg := range change.Segments {
		if seg.WorkSessionID == 0 && change.OpenSession != nil {
			seg.WorkSessionID = change.OpenSession.ID
		}
		if seg.ID == 0 {
			m.nextSegment++
			seg.ID = m.nextSegment
		}
		m.segments[seg.ID] = *seg
	}
	if change.Review != nil {
		change.Review.ID = uint(len(m.reviews) + 1)
		m.reviews = append(m.reviews, *change.Review)
	}
	if change.Record != nil {
		change.Record.ID = uint(len(m.records) + 1)
		m.records = append(m.records, *change.Record)
	}
	return nil
}

func (m *memStore) Segments(_ context.Context, employeeCode string, from, to time.Time) ([]models.TimelineSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.TimelineSegment
	for _, s := range m.segments {
		if s.EmployeeCode != employeeCode {
			continue
		}
		if s.StartAt.Before(to) && s.Extent().After(from) {
			result = append(result, s)
		}
	}
	sortSegments(result)
	return result, nil
}

func (m *memStore) all(employeeCode string) []models.TimelineSegment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.TimelineSegment
	for _, s := range m.segments {
		if s.EmployeeCode == employeeCode {
			result = append(result, s)
		}
	}
	sortSegments(result)
	return result
}

func (m *memStore) session(id uint) models.WorkSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) storedReviews() []models.CheckoutReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CheckoutReview(nil), m.reviews...)
}

func sortSegments(segments []models.TimelineSegment) {
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].StartAt.Equal(segments[j].StartAt) {
			return segments[i].ID < segments[j].ID
		}
		return segments[i].StartAt.Before(segments[j].StartAt)
	})
}

// staticOverrides отдает заранее заданные перекрытия
type staticOverrides []models.Override

func (s staticOverrides) Overrides(_ context.Context, _ string, from, to time.Time) ([]models.Override, error) {
	var result []models.Override
	for _, o := range s {
		if o.StartAt.Before(to) && o.EndAt.After(from) {
			result = append(result, o)
		}
	}
	return result, nil
}
