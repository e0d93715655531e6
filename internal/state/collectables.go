package state

// CollectableType identifies the pickup sub-type. Owners of a pull-aura
// declare which types they accept.
type CollectableType string

const (
	CollectableCoin         CollectableType = "coin"
	CollectableShieldCharge CollectableType = "shield_charge"
	CollectablePullCharge   CollectableType = "pull_charge"
)

// ParseCollectableType validates a collectable type coming from config or the
// wire.
func ParseCollectableType(value string) (CollectableType, bool) {
	switch CollectableType(value) {
	case CollectableCoin, CollectableShieldCharge, CollectablePullCharge:
		return CollectableType(value), true
	default:
		return "", false
	}
}

// IsCharge reports whether picking the type up grants an ability charge
// instead of inventory.
func (t CollectableType) IsCharge() bool {
	return t == CollectableShieldCharge || t == CollectablePullCharge
}
