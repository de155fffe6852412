package main

import (
	"bytes"
	"testing"

	"hydrator/internal/track"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		source  track.DurationSource
		want    string
	}{
		{0, "", "-"},
		{215, track.DurationFromSource, "3:35"},
		{180, track.DurationPlaceholder, "3:00*"},
		{3725, track.DurationFromSource, "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.seconds, tt.source); got != tt.want {
			t.Fatalf("formatDuration(%d, %q) = %q, want %q", tt.seconds, tt.source, got, tt.want)
		}
	}
}

func TestStatusLabelPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	if shouldColorize(&buf) {
		t.Fatal("buffers are never colorized")
	}
	if got := statusLabel(track.StatusUnfindable, false); got != "Unfindable" {
		t.Fatalf("unexpected label %q", got)
	}
}
