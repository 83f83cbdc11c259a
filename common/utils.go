package common

// CeilDiv returns ceil(n / d) for non-negative n and positive d.
func CeilDiv(n, d int) int {
	return (n + d - 1) / d
}
