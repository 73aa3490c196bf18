package resourceguard

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestShouldAcceptHighThresholdAdmits(t *testing.T) {
	g := New(1000, zerolog.Nop())

	accept, reason := g.ShouldAccept()
	if !accept {
		t.Fatalf("expected an implausibly high threshold to always admit, got reason %q", reason)
	}
	if reason != "" {
		t.Fatalf("expected no rejection reason when admitting, got %q", reason)
	}
}

func TestShouldAcceptReturnsReasonWhenRejecting(t *testing.T) {
	g := New(0, zerolog.Nop())

	accept, reason := g.ShouldAccept()
	if accept {
		// Fail-open on a measurement error is legitimate; only
		// assert the reason contract when a rejection occurs.
		t.Skip("CPU measurement unavailable in this environment; fail-open admitted the connection")
	}
	if reason == "" {
		t.Fatal("expected a non-empty rejection reason")
	}
}
