package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

const userSelect = `
	SELECT u.id, u.name, u.email, u.mobile, u.role, u.gender, u.town, u.level,
	       u.translator_type, u.consumer_type, u.not_get_emergency, u.not_get_nighttime,
	       u.not_get_notification,
	       COALESCE(array_agg(l.language ORDER BY l.language) FILTER (WHERE l.language IS NOT NULL), '{}') AS languages
	FROM users u
	LEFT JOIN user_languages l ON l.user_id = u.id`

type userRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Email              string         `db:"email"`
	Mobile             string         `db:"mobile"`
	Role               string         `db:"role"`
	Gender             string         `db:"gender"`
	Town               string         `db:"town"`
	Level              string         `db:"level"`
	TranslatorType     string         `db:"translator_type"`
	ConsumerType       string         `db:"consumer_type"`
	NotGetEmergency    bool           `db:"not_get_emergency"`
	NotGetNighttime    bool           `db:"not_get_nighttime"`
	NotGetNotification bool           `db:"not_get_notification"`
	Languages          pq.StringArray `db:"languages"`
}

func (r *userRow) user() domain.User {
	return domain.User{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Mobile:             r.Mobile,
		Role:               domain.Role(r.Role),
		Gender:             domain.Gender(r.Gender),
		Town:               r.Town,
		Languages:          []string(r.Languages),
		Level:              domain.Level(r.Level),
		TranslatorType:     r.TranslatorType,
		ConsumerType:       r.ConsumerType,
		NotGetEmergency:    r.NotGetEmergency,
		NotGetNighttime:    r.NotGetNighttime,
		NotGetNotification: r.NotGetNotification,
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, userSelect+` WHERE u.id = $1 GROUP BY u.id`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, userSelect+` WHERE lower(u.email) = lower($1) GROUP BY u.id`, strings.TrimSpace(email))
}

func (s *Store) getUser(ctx context.Context, query, key string) (*domain.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u := row.user()
	return &u, nil
}

// FindTranslators narrows candidates in SQL. The matcher re-checks every
// rule on the result.
func (s *Store) FindTranslators(ctx context.Context, q domain.TranslatorQuery) ([]domain.User, error) {
	query := userSelect + ` WHERE u.role = 'translator'`
	args := []interface{}{}
	argIdx := 1

	next := func(v interface{}) string {
		args = append(args, v)
		p := fmt.Sprintf("$%d", argIdx)
		argIdx++
		return p
	}

	switch q.Tier {
	case domain.TierPaid:
		query += ` AND u.translator_type = 'professional'`
	case domain.TierRWS:
		query += ` AND u.translator_type = 'rwstranslator'`
	case domain.TierUnpaid:
		query += ` AND u.translator_type NOT IN ('professional', 'rwstranslator')`
	}
	if q.Language != "" {
		query += ` AND EXISTS (SELECT 1 FROM user_languages ul WHERE ul.user_id = u.id AND lower(ul.language) = ` +
			next(strings.ToLower(q.Language)) + `)`
	}
	if q.Gender != domain.GenderAny {
		query += ` AND u.gender = ` + next(string(q.Gender))
	}
	if len(q.Levels) > 0 {
		levels := make([]string, len(q.Levels))
		for i, l := range q.Levels {
			levels[i] = string(l)
		}
		query += ` AND u.level = ANY(` + next(pq.Array(levels)) + `)`
	}
	if len(q.ExcludeIDs) > 0 {
		query += ` AND NOT (u.id = ANY(` + next(pq.Array(q.ExcludeIDs)) + `))`
	}
	query += ` GROUP BY u.id ORDER BY u.id`

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find translators: %w", err)
	}

	users := make([]domain.User, len(rows))
	for i := range rows {
		users[i] = rows[i].user()
	}
	return users, nil
}

func (s *Store) BlacklistedTranslators(ctx context.Context, customerID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT translator_id FROM users_blacklist WHERE customer_id = $1 ORDER BY translator_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	return ids, nil
}

// SaveUser inserts or replaces a user and their language set
func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	return s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, email, mobile, role, gender, town, level, translator_type,
			                   consumer_type, not_get_emergency, not_get_nighttime, not_get_notification)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, email = EXCLUDED.email, mobile = EXCLUDED.mobile,
				role = EXCLUDED.role, gender = EXCLUDED.gender, town = EXCLUDED.town,
				level = EXCLUDED.level, translator_type = EXCLUDED.translator_type,
				consumer_type = EXCLUDED.consumer_type, not_get_emergency = EXCLUDED.not_get_emergency,
				not_get_nighttime = EXCLUDED.not_get_nighttime, not_get_notification = EXCLUDED.not_get_notification`,
			u.ID, u.Name, u.Email, u.Mobile, string(u.Role), string(u.Gender), u.Town, string(u.Level),
			u.TranslatorType, u.ConsumerType, u.NotGetEmergency, u.NotGetNighttime, u.NotGetNotification)
		if err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_languages WHERE user_id = $1`, u.ID); err != nil {
			return fmt.Errorf("failed to reset languages: %w", err)
		}
		if len(u.Languages) > 0 {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_languages (user_id, language) SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`,
				u.ID, pq.Array(u.Languages))
			if err != nil {
				return fmt.Errorf("failed to save languages: %w", err)
			}
		}
		return nil
	})
}

// Blacklist records that customerID excludes translatorID
func (s *Store) Blacklist(ctx context.Context, customerID, translatorID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users_blacklist (customer_id, translator_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		customerID, translatorID)
	if err != nil {
		return fmt.Errorf("failed to blacklist translator: %w", err)
	}
	return nil
}
