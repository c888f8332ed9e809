package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "一意制約違反", err: &pq.Error{Code: "23505"}, want: true},
		{name: "ラップされた一意制約違反", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "外部キー違反", err: &pq.Error{Code: "23503"}, want: false},
		{name: "pq以外のエラー", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "外部キー違反", err: &pq.Error{Code: "23503"}, want: true},
		{name: "ラップされた外部キー違反", err: fmt.Errorf("update: %w", &pq.Error{Code: "23503"}), want: true},
		{name: "一意制約違反", err: &pq.Error{Code: "23505"}, want: false},
		{name: "pq以外のエラー", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isForeignKeyViolation(tt.err); got != tt.want {
				t.Errorf("isForeignKeyViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
