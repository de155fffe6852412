package track

import (
	"errors"
	"strings"
	"testing"
)

func TestReferenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		ref     Reference
		wantErr bool
	}{
		{"uuid pair", Reference{FeedGUID: "917393e3-1b1e-5cef-ace4-edaa54e1f810", ItemGUID: "a1b2c3d4-0000-4000-8000-000000000001"}, false},
		{"opaque guids", Reference{FeedGUID: "f1", ItemGUID: "i1"}, false},
		{"empty feed", Reference{FeedGUID: "", ItemGUID: "i1"}, true},
		{"blank item", Reference{FeedGUID: "f1", ItemGUID: "   "}, true},
		{"embedded space", Reference{FeedGUID: "f 1", ItemGUID: "i1"}, true},
		{"too long", Reference{FeedGUID: strings.Repeat("a", 300), ItemGUID: "i1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReference) {
					t.Fatalf("expected ErrMalformedReference, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCanonicalLowercasesUUIDsOnly(t *testing.T) {
	ref := Reference{FeedGUID: " 917393E3-1B1E-5CEF-ACE4-EDAA54E1F810 ", ItemGUID: "Episode-ABC"}
	got := ref.Canonical()
	if got.FeedGUID != "917393e3-1b1e-5cef-ace4-edaa54e1f810" {
		t.Fatalf("unexpected feed guid: %q", got.FeedGUID)
	}
	if got.ItemGUID != "Episode-ABC" {
		t.Fatalf("opaque guid must be kept verbatim, got %q", got.ItemGUID)
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusResolved.Terminal() || !StatusUnfindable.Terminal() {
		t.Fatal("resolved and unfindable must be terminal")
	}
	if StatusUnresolved.Terminal() {
		t.Fatal("unresolved must not be terminal")
	}
	if _, err := ParseStatus("bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if s, err := ParseStatus(" Resolved "); err != nil || s != StatusResolved {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize([]ResolvedTrack{
		{Status: StatusResolved},
		{Status: StatusUnresolved},
		{Status: StatusUnfindable},
		{Status: StatusResolved},
	})
	want := Summary{Resolved: 2, Unresolved: 1, Unfindable: 1, Total: 4}
	if got != want {
		t.Fatalf("Summarize = %+v, want %+v", got, want)
	}
}
