package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/models"
)

// MemoryStore keeps addresses, labels and the watchlist in process memory.
// It serves when no Postgres is configured and in tests; nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	addresses map[string]*models.Address
	labels    map[int64]*models.AddressLabel
	watched   map[int64]*models.WatchedAddress
	nextLabel int64
	nextWatch int64
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		addresses: make(map[string]*models.Address),
		labels:    make(map[int64]*models.AddressLabel),
		watched:   make(map[int64]*models.WatchedAddress),
		now:       time.Now,
	}
}

// GetAddress returns a copy of the address row, nil when unknown
func (s *MemoryStore) GetAddress(_ context.Context, address string) (*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.addresses[address]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// CreateAddress inserts addr unless it already exists
func (s *MemoryStore) CreateAddress(_ context.Context, addr *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addresses[addr.Address]; ok {
		return nil
	}
	cp := *addr
	s.addresses[addr.Address] = &cp
	return nil
}

// ListAddresses returns every known address, most recently seen first
func (s *MemoryStore) ListAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*models.Address, 0, len(s.addresses))
	for _, a := range s.addresses {
		rows = append(rows, a)
	}
	slices.SortFunc(rows, func(a, b *models.Address) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})

	out := make([]string, len(rows))
	for i, a := range rows {
		out[i] = a.Address
	}
	return out, nil
}

// GetLabelsByAddress returns copies of every label on address, oldest first
func (s *MemoryStore) GetLabelsByAddress(_ context.Context, address string) ([]*models.AddressLabel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AddressLabel
	for _, l := range s.labels {
		if l.Address == address {
			cp := *l
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.AddressLabel) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateLabel inserts a label. An identical (address, label, category) row keeps the
// higher confidence instead of being duplicated.
func (s *MemoryStore) CreateLabel(_ context.Context, label *models.AddressLabel) (*models.AddressLabel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.labels {
		if l.Address == label.Address && l.SameLabel(label.Label, label.Category) {
			l.Confidence = max(l.Confidence, label.Confidence)
			cp := *l
			return &cp, nil
		}
	}

	s.nextLabel++
	stored := *label
	stored.ID = s.nextLabel
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	s.labels[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

// UpdateLabelConfidence sets the confidence of label id and stamps updated_at
func (s *MemoryStore) UpdateLabelConfidence(_ context.Context, id int64, confidence float64) (*models.AddressLabel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.labels[id]
	if !ok {
		return nil, apperrors.StoreFailure("update label", apperrors.ErrNotFound)
	}
	now := s.now().UTC()
	l.Confidence = confidence
	l.UpdatedAt = &now
	cp := *l
	return &cp, nil
}

// ListLabels returns the newest labels, optionally restricted to one category
func (s *MemoryStore) ListLabels(_ context.Context, filter models.LabelFilter) ([]*models.AddressLabel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AddressLabel, 0)
	for _, l := range s.labels {
		if filter.Category != "" && l.Category != filter.Category {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.AddressLabel) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListCategories returns the distinct categories in use, sorted
func (s *MemoryStore) ListCategories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, l := range s.labels {
		if _, ok := seen[l.Category]; ok {
			continue
		}
		seen[l.Category] = struct{}{}
		out = append(out, l.Category)
	}
	slices.Sort(out)
	return out, nil
}

// CountByCategory returns the number of labels per category
func (s *MemoryStore) CountByCategory(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, l := range s.labels {
		counts[l.Category]++
	}
	return counts, nil
}

// DeleteLabel removes label id and reports whether it existed
func (s *MemoryStore) DeleteLabel(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.labels[id]; !ok {
		return false, nil
	}
	delete(s.labels, id)
	return true, nil
}

// AddWatched inserts a watched address. Watching the same address twice is a conflict.
func (s *MemoryStore) AddWatched(_ context.Context, w *models.WatchedAddress) (*models.WatchedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.watched {
		if existing.Address == w.Address {
			return nil, apperrors.NewConflictError("address is already watched")
		}
	}

	s.nextWatch++
	stored := *w
	stored.ID = s.nextWatch
	stored.CreatedAt = s.now().UTC()
	s.watched[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

// ListWatched returns the watchlist, newest first
func (s *MemoryStore) ListWatched(_ context.Context) ([]*models.WatchedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.WatchedAddress, 0, len(s.watched))
	for _, w := range s.watched {
		cp := *w
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.WatchedAddress) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

// RemoveWatched deletes entry id and reports whether it existed
func (s *MemoryStore) RemoveWatched(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched[id]; !ok {
		return false, nil
	}
	delete(s.watched, id)
	return true, nil
}
