package emotes

import "math/rand"

// Selector draws weighted-random emote batches. The RNG is injected so tests
// can fix a seed; it is not safe for concurrent use by multiple goroutines.
type Selector struct {
	rng *rand.Rand
}

func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// SelectRandom flattens the catalog, applies the whitelist (fail-open: a
// whitelist that would eliminate every candidate is ignored for this call),
// and draws count emotes independently with replacement. The same emote can
// appear twice in one batch; that is expected behavior.
func (s *Selector) SelectRandom(catalog Catalog, count int, whitelist map[string]struct{}, channelLogin string) []Emote {
	if count <= 0 || len(catalog) == 0 {
		return nil
	}

	all := make([]Emote, 0, catalog.Size())
	for _, cat := range catalog {
		for _, e := range cat.Emotes {
			if e.Owner == nil {
				e.Owner = cat.Owner
			}
			all = append(all, e)
		}
	}
	if len(all) == 0 {
		return nil
	}

	if len(whitelist) > 0 {
		filtered := all[:0:0]
		for _, e := range all {
			if _, ok := whitelist[e.ID]; ok {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) > 0 {
			all = filtered
		}
	}

	weights := make([]int, len(all))
	total := 0
	for i, e := range all {
		weights[i] = weightFor(e, channelLogin)
		total += weights[i]
	}

	out := make([]Emote, 0, count)
	for i := 0; i < count; i++ {
		draw := s.rng.Intn(total)
		for j, w := range weights {
			if draw < w {
				out = append(out, all[j])
				break
			}
			draw -= w
		}
	}
	return out
}
