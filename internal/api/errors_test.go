package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/quillspace/engage/internal/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", models.ErrInvalidInput, http.StatusBadRequest},
		{"invalid operation", models.ErrInvalidOperation, http.StatusBadRequest},
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", models.ErrForbidden, http.StatusForbidden},
		{"not found", models.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("comment lookup: %w", models.ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
