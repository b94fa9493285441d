package memory

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"spendplan/internal/core"
	ports "spendplan/internal/records"
)

var _ ports.Store = (*Store)(nil)

// Seed is the on-disk layout of a seed file:
//
//	users:
//	  alice:
//	    records:
//	      - month: "2024-01"
//	        total_income: 50000
//	        spent_amount: 31000
//	        category_expenses: {Food: 8000, Travel: 2500}
//	    goals:
//	      - id: laptop
//	        name: New laptop
//	        target_amount: 90000
//	        end_date: "2025-03-01"
type Seed struct {
	Users map[string]SeedUser `yaml:"users"`
}

type SeedUser struct {
	Records []core.MonthlyRecord `yaml:"records"`
	Goals   []core.SavingsGoal   `yaml:"goals"`
}

type userData struct {
	records map[core.MonthKey]core.MonthlyRecord
	goals   []core.SavingsGoal
}

// Store keeps records and goals in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
}

func New() *Store {
	return &Store{users: make(map[string]*userData)}
}

// NewFromFile loads a YAML seed. A missing path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}
	if err := s.Load(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadSeed decodes a seed file and normalizes its month keys.
func ReadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for userID, u := range seed.Users {
		for i := range u.Records {
			key, err := core.ParseMonthKey(string(u.Records[i].Month))
			if err != nil {
				return nil, fmt.Errorf("user %s record %d: %w", userID, i, err)
			}
			u.Records[i].Month = key
		}
	}
	return &seed, nil
}

// Load merges a seed into the store.
func (s *Store) Load(seed *Seed) error {
	if seed == nil {
		return nil
	}
	ctx := context.Background()
	for _, userID := range slices.Sorted(maps.Keys(seed.Users)) {
		u := seed.Users[userID]
		for _, r := range u.Records {
			if err := s.PutRecord(ctx, userID, r); err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}
		}
		for _, g := range u.Goals {
			if err := s.SaveGoal(ctx, userID, g); err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}
		}
	}
	return nil
}

func (s *Store) user(userID string) *userData {
	u, ok := s.users[userID]
	if !ok {
		u = &userData{records: make(map[core.MonthKey]core.MonthlyRecord)}
		s.users[userID] = u
	}
	return u
}

func (s *Store) ListRecords(_ context.Context, userID string, from, to core.MonthKey) ([]core.MonthlyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]core.MonthlyRecord, 0, len(u.records))
	for month, r := range u.records {
		if ports.InRange(month, from, to) {
			out = append(out, copyRecord(r))
		}
	}
	core.SortRecords(out)
	return out, nil
}

// PutRecord stores r, replacing any record for the same month.
func (s *Store) PutRecord(_ context.Context, userID string, r core.MonthlyRecord) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(userID).records[r.Month] = copyRecord(r)
	return nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(u.goals), nil
}

func (s *Store) GetGoal(_ context.Context, userID, goalID string) (core.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		for _, g := range u.goals {
			if g.ID == goalID {
				return g, nil
			}
		}
	}
	return core.SavingsGoal{}, core.ErrGoalNotFound
}

// SaveGoal updates a goal in place or appends it, keeping insertion order.
func (s *Store) SaveGoal(_ context.Context, userID string, g core.SavingsGoal) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	for i := range u.goals {
		if u.goals[i].ID == g.ID {
			u.goals[i] = g
			return nil
		}
	}
	u.goals = append(u.goals, g)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.users)), nil
}

func copyRecord(r core.MonthlyRecord) core.MonthlyRecord {
	r.CategoryExpenses = maps.Clone(r.CategoryExpenses)
	return r
}
