package postgresql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation), Constraint: "uq_active_assignment"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"matching constraint", unique, "uq_active_assignment", true},
		{"any constraint", unique, "", true},
		{"wrapped", fmt.Errorf("insert: %w", unique), "uq_active_assignment", true},
		{"other constraint", unique, "jobs_pkey", false},
		{"other code", &pq.Error{Code: pq.ErrorCode(pgerrcode.ForeignKeyViolation)}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pq.Error{Code: pq.ErrorCode(pgerrcode.SerializationFailure)}))
	assert.True(t, IsSerializationFailure(&pq.Error{Code: pq.ErrorCode(pgerrcode.DeadlockDetected)}))
	assert.False(t, IsSerializationFailure(&pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation)}))
	assert.False(t, IsSerializationFailure(errors.New("x")))
}

func TestConfigURL(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "booking", Password: "p@ss", Database: "bookings"}

	assert.Equal(t, "postgres://booking:p%40ss@db:5432/bookings?sslmode=disable", cfg.URL())
	assert.Equal(t, "host=db port=5432 user=booking password=p@ss dbname=bookings sslmode=disable", cfg.DSN())
}
