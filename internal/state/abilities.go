package state

// AbilityID names an ability gated by the cooldown engine.
type AbilityID string

const (
	AbilityShield   AbilityID = "shield"
	AbilityPullAura AbilityID = "pull_aura"
	// AbilityFire gates the weapon's rate of fire. It has no charge.
	AbilityFire AbilityID = "fire"
)

// ParseAbilityID validates an ability requested by a client. Fire is not
// client-activatable through this path.
func ParseAbilityID(value string) (AbilityID, bool) {
	switch AbilityID(value) {
	case AbilityShield, AbilityPullAura:
		return AbilityID(value), true
	default:
		return "", false
	}
}
