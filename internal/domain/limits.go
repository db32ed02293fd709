package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PurchaseLimits maps a product id to the maximum number of purchases one
// account may make. Products missing from the map are unlimited.
type PurchaseLimits map[int64]int64

// ParsePurchaseLimits reads "product:max" pairs separated by commas, e.g. "1:1,2:1".
// A max of -1 marks the product as unlimited.
func ParsePurchaseLimits(s string) (PurchaseLimits, error) {
	limits := PurchaseLimits{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		p, m, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid purchase limit %q", pair)
		}
		product, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || product <= 0 {
			return nil, fmt.Errorf("invalid product id in %q", pair)
		}
		max, err := strconv.ParseInt(strings.TrimSpace(m), 10, 64)
		if err != nil || max < Unlimited {
			return nil, fmt.Errorf("invalid max count in %q", pair)
		}
		limits[product] = max
	}
	return limits, nil
}

// Limit returns the cap for productID, or Unlimited.
func (l PurchaseLimits) Limit(productID int64) int64 {
	if max, ok := l[productID]; ok {
		return max
	}
	return Unlimited
}
