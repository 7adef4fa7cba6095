package rtree

import (
	"fmt"
	"strings"
)

// unitMultipliers is the fixed conversion table spec.md §4.1 calls for
// ("k/M/G multipliers, mHz etc."), grounded in the original's
// ConvertValue helper in resource_accounter.cc: declared capacities carry
// a unit suffix and are stored internally as plain integer amounts.
var unitMultipliers = map[string]float64{
	"":    1,
	"b":   1,
	"k":   1e3,
	"M":   1e6,
	"G":   1e9,
	"Ki":  1024,
	"Mi":  1024 * 1024,
	"Gi":  1024 * 1024 * 1024,
	"Hz":  1,
	"kHz": 1e3,
	"MHz": 1e6,
	"GHz": 1e9,
	"mHz": 1e-3,
	"%":   1,
}

// ConvertAmount converts amount, declared in units, to the internal
// integer amount the tree accounts in. Unknown units are an error rather
// than a silent 1:1 fallback, matching register's InvalidPath contract.
func ConvertAmount(units string, amount float64) (uint64, error) {
	mult, ok := unitMultipliers[strings.TrimSpace(units)]
	if !ok {
		return 0, fmt.Errorf("unknown resource unit %q", units)
	}
	converted := amount * mult
	if converted < 0 {
		return 0, fmt.Errorf("negative resource amount after conversion: %f", converted)
	}
	return uint64(converted), nil
}
