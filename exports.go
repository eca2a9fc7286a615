package settlenet

import "github.com/flowcap/settlenet/types"

// Re-export common types so callers don't have to import the types
// package directly for the vocabulary used throughout the public API.

// Money is re-exported from the types package.
type Money = types.Money

// Rate is re-exported from the types package (basis-point discount and
// fraud-score rates).
type Rate = types.Rate

// Entity is re-exported from the types package.
type Entity = types.Entity

// Re-export Money constructors.
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	JPY  = types.JPY
	CAD  = types.CAD
	AUD  = types.AUD
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Rate constructors.
var (
	NewRate = types.NewRate
	BP      = types.BP
)

// Re-export Entity constructor.
var NewEntity = types.NewEntity
