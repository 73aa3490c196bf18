package channelid

import "testing"

// Locked vectors: SHA-256 truncated to its first 4 bytes, read
// little-endian as a signed 32-bit integer. Precomputed once and
// never expected to change across versions — if these fail, the hash
// algorithm changed, not the test.
func TestChannelIDVectors(t *testing.T) {
	cases := []struct {
		term string
		want int32
	}{
		{"", 1120186595},
		{"hello", -1169296852},
	}

	for _, tc := range cases {
		if got := ChannelID(tc.term); got != tc.want {
			t.Errorf("ChannelID(%q) = %d, want %d", tc.term, got, tc.want)
		}
	}
}

func TestChannelIDDeterministic(t *testing.T) {
	terms := []string{"go", "zig", "rust", "search buddy", "", "a very long term with spaces"}
	for _, term := range terms {
		first := ChannelID(term)
		for i := 0; i < 10; i++ {
			if got := ChannelID(term); got != first {
				t.Fatalf("ChannelID(%q) not deterministic: %d != %d", term, got, first)
			}
		}
	}
}

func TestChannelIDDistinctForDistinctTerms(t *testing.T) {
	seen := map[int32]string{}
	for _, term := range []string{"go", "zig", "rust", "python", "elixir", "haskell"} {
		id := ChannelID(term)
		if other, ok := seen[id]; ok {
			t.Fatalf("unexpected collision between %q and %q at this scale", term, other)
		}
		seen[id] = term
	}
}
