package models

import "time"

const (
	VehicleAvailable   = "available"
	VehicleMaintenance = "maintenance"
	VehicleRented      = "rented"
)

const (
	// BranchCustom is the branch id that switches location selection to the map.
	BranchCustom = "custom"

	// DefaultDraftTTL is how long an in-progress form survives an auth redirect.
	DefaultDraftTTL = 2 * time.Hour

	// DefaultCatalogCacheTTL is the Redis TTL for catalog reads.
	DefaultCatalogCacheTTL = 5 * time.Minute

	// DefaultTimezone is the business timezone for display dates.
	DefaultTimezone = "Asia/Bangkok"
)

// Role values carried in session tokens.
const (
	RoleCustomer = "authenticated"
	RoleAdmin    = "admin"
)
