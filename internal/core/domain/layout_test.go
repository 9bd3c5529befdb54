package domain_test

import (
	"path/filepath"
	"testing"

	"go.trai.ch/kiln/internal/core/domain"
)

func TestLayoutPaths(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "DefaultKilnPath",
			got:      domain.DefaultKilnPath(),
			expected: ".kiln",
		},
		{
			name:     "DefaultStorePath",
			got:      domain.DefaultStorePath(),
			expected: filepath.Join(".kiln", "store"),
		},
		{
			name:     "DefaultJournalPath",
			got:      domain.DefaultJournalPath(),
			expected: filepath.Join(".kiln", "journal.db"),
		},
		{
			name:     "DoneFileName",
			got:      domain.DoneFileName("data/paths", "gaussian_viz_frames"),
			expected: "data/paths/gaussian_viz_frames_done.txt",
		},
		{
			name:     "FramePattern",
			got:      domain.FramePattern("data/paths", "gaussian_viz_frames"),
			expected: "data/paths/gaussian_viz_frames/%08d.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}
