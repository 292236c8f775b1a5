package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	c := *u
	c.Languages = slices.Clone(u.Languages)
	return &c, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			c.Languages = slices.Clone(u.Languages)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (s *Store) FindTranslators(_ context.Context, q domain.TranslatorQuery) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.User
	for _, u := range s.users {
		if !u.IsTranslator() || slices.Contains(q.ExcludeIDs, u.ID) {
			continue
		}
		if q.Tier != "" && u.Tier() != q.Tier {
			continue
		}
		if q.Language != "" && !u.Speaks(q.Language) {
			continue
		}
		if q.Gender != domain.GenderAny && u.Gender != q.Gender {
			continue
		}
		if len(q.Levels) > 0 && !slices.Contains(q.Levels, u.Level) {
			continue
		}
		c := *u
		c.Languages = slices.Clone(u.Languages)
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) BlacklistedTranslators(_ context.Context, customerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.blacklist[customerID]), nil
}
