package models

const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// AddressQuota returns the distinct-address cap for a plan tier. Unknown plans
// fall back to the free tier.
func AddressQuota(plan string) int {
	switch plan {
	case PlanPro:
		return 20
	case PlanEnterprise:
		return 1000
	default:
		return 5
	}
}
