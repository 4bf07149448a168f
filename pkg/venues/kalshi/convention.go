// Package kalshi implements the Kalshi venue gateway: bearer-token sessions,
// cent-denominated prices quoted on the canonical yes side, and the
// portfolio/order REST surface.
package kalshi

import (
	"math"

	"execution-core/pkg/venues/common"
)

// Prices are whole cents out of 100, always quoted on the yes side of the
// market. An order on the no side is re-expressed by complementing: a no
// contract at 30¢ is the identical exposure to the yes side at 70¢.
const centsMax = 100

// CentsFromProbability converts a normalized probability price to whole cents.
func CentsFromProbability(p float64) int {
	return int(math.Round(p * centsMax))
}

// ProbabilityFromCents converts a cent price back to the probability domain.
func ProbabilityFromCents(c int) float64 {
	return float64(c) / centsMax
}

// YesCents maps a (side, cents) pair onto the wire yes_price.
func YesCents(side common.Side, cents int) int {
	if side == common.SideNo {
		return centsMax - cents
	}
	return cents
}

// SideCents inverts YesCents: given the stored yes_price of a resting order
// and the side it was placed on, it recovers the side-local price. The
// round trip SideCents(YesCents(s, p), s) == p holds for every side and every
// price in [0, 100].
func SideCents(yesCents int, side common.Side) int {
	if side == common.SideNo {
		return centsMax - yesCents
	}
	return yesCents
}
