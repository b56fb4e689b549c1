package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"fits", "nike.com", 20, "nike.com"},
		{"exact", "nike.com", 8, "nike.com"},
		{"ellipsis", "verylongcompetitor.com", 10, "verylon..."},
		{"tiny width", "adidas.com", 3, "adi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.n))
		})
	}
}

func TestOrNA(t *testing.T) {
	assert.Equal(t, "N/A", orNA(""))
	assert.Equal(t, "nike.com", orNA("nike.com"))
}
