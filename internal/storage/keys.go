package storage

// Partition-key discriminators of the KV store layout.
const (
	PKScoringWeight = "SCORING_WEIGHT"
	PKStaticPage    = "STATIC_PAGE"
	PKSeen          = "SEEN"
	PKWish          = "WISH"
	PKCustomer      = "CUSTOMER"
	PKTier          = "TIER"
)

// SKCurrent is the sort key of the mutable CURRENT pointer within a
// versioned partition.
const SKCurrent = "CURRENT"
