//go:build !busq_invariants

package busq

func assert(bool, string) {}
