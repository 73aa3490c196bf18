package ratelimit

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := New(1, 2, zerolog.Nop())
	defer l.Stop()

	if !l.Allow("1.2.3.4") {
		t.Fatal("expected first attempt to be allowed")
	}
	if !l.Allow("1.2.3.4") {
		t.Fatal("expected second attempt within burst to be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("expected third rapid attempt to exceed the burst")
	}
}

func TestAllowIsPerIP(t *testing.T) {
	l := New(1, 1, zerolog.Nop())
	defer l.Stop()

	if !l.Allow("1.1.1.1") {
		t.Fatal("expected first IP's first attempt to be allowed")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatal("expected a different IP to have its own independent bucket")
	}
}
