package domain

// PairID derives the canonical, order-independent key for a pair of users:
// the lexicographically smaller uid first, joined by an underscore. It keys
// both the Connection and the Thread for the pair, guaranteeing at most one
// of each per unordered pair.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
