package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection reset"),
			want: false,
		},
		{
			name:       "pgconn matching constraint",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_gateway_txn_id"},
			constraint: "uq_orders_gateway_txn_id",
			want:       true,
		},
		{
			name:       "pgconn different constraint",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "uq_something_else"},
			constraint: "uq_orders_gateway_txn_id",
			want:       false,
		},
		{
			name:       "pgconn non-unique code",
			err:        &pgconn.PgError{Code: "23503", ConstraintName: "uq_orders_gateway_txn_id"},
			constraint: "uq_orders_gateway_txn_id",
			want:       false,
		},
		{
			name:       "pq matching constraint",
			err:        &pq.Error{Code: "23505", Constraint: "uq_orders_gateway_txn_id"},
			constraint: "uq_orders_gateway_txn_id",
			want:       true,
		},
		{
			name:       "wrapped pgconn error",
			err:        fmt.Errorf("create order: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_gateway_txn_id"}),
			constraint: "uq_orders_gateway_txn_id",
			want:       true,
		},
		{
			// SQLite names the violated columns, never the index, so the
			// constraint filter cannot apply on this message form.
			name:       "sqlite column message with constraint filter",
			err:        errors.New("UNIQUE constraint failed: orders.gateway_txn_id"),
			constraint: "uq_orders_gateway_txn_id",
			want:       true,
		},
		{
			name: "sqlite column message without filter",
			err:  errors.New("UNIQUE constraint failed: orders.gateway_txn_id"),
			want: true,
		},
		{
			name:       "postgres text message matching constraint",
			err:        errors.New(`duplicate key value violates unique constraint "uq_orders_gateway_txn_id"`),
			constraint: "uq_orders_gateway_txn_id",
			want:       true,
		},
		{
			name:       "postgres text message different constraint",
			err:        errors.New(`duplicate key value violates unique constraint "uq_something_else"`),
			constraint: "uq_orders_gateway_txn_id",
			want:       false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}
