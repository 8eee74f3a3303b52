package memory

import (
	"context"
	"sort"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	"github.com/travelties/service_layer/internal/app/storage"
)

func cloneExpense(e expense.Expense) expense.Expense {
	e.Splits = append([]expense.Split{}, e.Splits...)
	return e
}

func (s *Store) CreateExpense(_ context.Context, e expense.Expense) (expense.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = newID()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.expenses[e.ID] = cloneExpense(e)
	return cloneExpense(e), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (expense.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return expense.Expense{}, storage.ErrNotFound
	}
	return cloneExpense(e), nil
}

func (s *Store) ListExpenses(_ context.Context, tripID string) ([]expense.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []expense.Expense
	for _, e := range s.expenses {
		if e.TripID == tripID {
			out = append(out, cloneExpense(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e expense.Expense) (expense.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[e.ID]
	if !ok {
		return expense.Expense{}, storage.ErrNotFound
	}
	e.TripID = existing.TripID
	e.CreatedBy = existing.CreatedBy
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.expenses[e.ID] = cloneExpense(e)
	return cloneExpense(e), nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) CreateSettlement(_ context.Context, st expense.Settlement) (expense.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" {
		st.ID = newID()
	}
	st.CreatedAt = time.Now().UTC()
	s.settlements[st.ID] = st
	return st, nil
}

func (s *Store) GetSettlement(_ context.Context, id string) (expense.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settlements[id]
	if !ok {
		return expense.Settlement{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *Store) GetSettlementByPaymentIntent(_ context.Context, intentID string) (expense.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.settlements {
		if intentID != "" && st.PaymentIntentID == intentID {
			return st, nil
		}
	}
	return expense.Settlement{}, storage.ErrNotFound
}

func (s *Store) ListSettlements(_ context.Context, tripID string) ([]expense.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []expense.Settlement
	for _, st := range s.settlements {
		if st.TripID == tripID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateSettlement(_ context.Context, st expense.Settlement) (expense.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.settlements[st.ID]
	if !ok {
		return expense.Settlement{}, storage.ErrNotFound
	}
	st.TripID = existing.TripID
	st.CreatedAt = existing.CreatedAt
	s.settlements[st.ID] = st
	return st, nil
}
