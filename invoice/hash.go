package invoice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/flowcap/settlenet/id"
)

// ComputeHash derives the content hash over (supplier, buyer, amount,
// currency, line items) used for dedup at admission (spec §3/§4.4). Line
// items are sorted by description before hashing so that equivalent
// invoices submitted with a different item ordering still collide.
func ComputeHash(supplier, buyer id.AccountID, amount int64, currency string, items []LineItem) string {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Description < sorted[j].Description })

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", supplier.String(), buyer.String(), amount, currency)
	for _, li := range sorted {
		fmt.Fprintf(h, "|%s|%d|%d", li.Description, li.Quantity, li.UnitPrice.Amount)
	}
	return hex.EncodeToString(h.Sum(nil))
}
