package rebill

import "github.com/xraph/rebill/id"

// ID is the primary identifier type for all rebill entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
