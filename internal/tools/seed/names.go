package seed

import (
	"fmt"
	"math/rand"
	"strings"
)

// Word pools for generated player handles. Handles only need to read well in
// a panel list; collisions are resolved by the registry.
var (
	handleAdjectives = []string{
		"amber", "brisk", "cinder", "dusty", "ember", "frost",
		"gloom", "hollow", "iron", "jade", "keen", "lunar",
		"moss", "night", "obsidian", "pale", "quiet", "rust",
		"shadow", "thorn", "umber", "vivid", "wild", "zephyr",
	}
	handleNouns = []string{
		"badger", "crow", "drake", "elk", "fox", "goat",
		"heron", "ibis", "jackal", "kestrel", "lynx", "marten",
		"newt", "otter", "pike", "quail", "raven", "stoat",
		"tern", "urchin", "viper", "wren", "yak", "zebra",
	}
)

// nameRegistry keeps generated player handles unique across a seed run.
type nameRegistry struct {
	counts map[string]int
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{counts: make(map[string]int)}
}

func (r *nameRegistry) uniqueHandle(base string) string {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return base
	}
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	count := r.counts[trimmed]
	r.counts[trimmed] = count + 1
	if count == 0 {
		return trimmed
	}
	return fmt.Sprintf("%s-%d", trimmed, count+1)
}

// playerHandle draws an adjective-noun handle from the word pools.
func (r *nameRegistry) playerHandle(rng *rand.Rand) string {
	adjective := handleAdjectives[rng.Intn(len(handleAdjectives))]
	noun := handleNouns[rng.Intn(len(handleNouns))]
	return r.uniqueHandle(adjective + "-" + noun)
}
