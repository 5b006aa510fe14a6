package emotes

import (
	"math/rand"
	"testing"
)

func testCatalog() Catalog {
	streamer := &User{ID: "100", Login: "streamer", DisplayName: "Streamer"}
	return Catalog{
		{Owner: streamer, Emotes: []Emote{
			{ID: "1", Token: "streamerHi", Type: TypeSubscriptions},
			{ID: "2", Token: "streamerLul", Type: TypeSubscriptions},
		}},
		{Owner: nil, Emotes: []Emote{
			{ID: "3", Token: "Kappa", Type: TypeGlobals},
			{ID: "4", Token: "PogChamp", Type: TypeGlobals},
		}},
		{Owner: &User{ID: "200", Login: "other", DisplayName: "Other"}, Emotes: []Emote{
			{ID: "5", Token: "otherWow", Type: "UNKNOWN"},
		}},
	}
}

func TestSelectRandomCount(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	cat := testCatalog()
	for _, n := range []int{0, 1, 3, 10} {
		got := s.SelectRandom(cat, n, nil, "streamer")
		if len(got) != n {
			t.Errorf("SelectRandom(count=%d) returned %d emotes", n, len(got))
		}
	}
}

func TestSelectRandomEmptyCatalog(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	if got := s.SelectRandom(nil, 3, nil, "streamer"); len(got) != 0 {
		t.Errorf("empty catalog returned %d emotes", len(got))
	}
	if got := s.SelectRandom(Catalog{{Owner: nil}}, 3, nil, ""); len(got) != 0 {
		t.Errorf("catalog with empty categories returned %d emotes", len(got))
	}
}

func TestSelectRandomWhitelist(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(7)))
	cat := testCatalog()
	wl := map[string]struct{}{"3": {}}
	for i := 0; i < 50; i++ {
		got := s.SelectRandom(cat, 2, wl, "streamer")
		for _, e := range got {
			if e.ID != "3" {
				t.Fatalf("whitelist ignored: selected %q", e.ID)
			}
		}
	}
}

func TestSelectRandomWhitelistFailsOpen(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(7)))
	cat := testCatalog()
	// Whitelist references no emote in the catalog; selection must behave as
	// if no whitelist were set rather than returning nothing.
	wl := map[string]struct{}{"does-not-exist": {}}
	got := s.SelectRandom(cat, 5, wl, "streamer")
	if len(got) != 5 {
		t.Fatalf("fail-open violated: got %d emotes, want 5", len(got))
	}
}

func TestSelectRandomDeterministicForSeed(t *testing.T) {
	cat := testCatalog()
	a := NewSelector(rand.New(rand.NewSource(42))).SelectRandom(cat, 6, nil, "streamer")
	b := NewSelector(rand.New(rand.NewSource(42))).SelectRandom(cat, 6, nil, "streamer")
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("draw %d differs: %q vs %q", i, a[i].ID, b[i].ID)
		}
	}
}

// Owner-matching emotes carry weight 1500 against 1 for unclassified emotes.
// Over many draws the empirical ratio should land in the same order of
// magnitude; a loose band keeps the test stable across seeds.
func TestSelectRandomWeighting(t *testing.T) {
	streamer := &User{ID: "100", Login: "streamer"}
	cat := Catalog{
		{Owner: streamer, Emotes: []Emote{{ID: "own", Token: "own", Type: "UNKNOWN"}}},
		{Owner: &User{ID: "200", Login: "other"}, Emotes: []Emote{{ID: "plain", Token: "plain", Type: "UNKNOWN"}}},
	}
	s := NewSelector(rand.New(rand.NewSource(99)))
	const trials = 150000
	counts := map[string]int{}
	for _, e := range s.SelectRandom(cat, trials, nil, "streamer") {
		counts[e.ID]++
	}
	if counts["plain"] == 0 {
		t.Fatal("weight floor violated: unclassified emote never selected")
	}
	ratio := float64(counts["own"]) / float64(counts["plain"])
	if ratio < 500 || ratio > 4500 {
		t.Errorf("owner/plain selection ratio = %.0f, want near 1500", ratio)
	}
}

func TestCatalogSize(t *testing.T) {
	if got := testCatalog().Size(); got != 5 {
		t.Errorf("Size() = %d, want 5", got)
	}
}
