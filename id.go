package settlenet

import "github.com/flowcap/settlenet/id"

// ID is the primary identifier type for every settlenet entity.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
