package model

// Skill はスキルマスタの1件。
type Skill struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

// PlayerSeedUpdate はシード時に1プレイヤーへ適用する更新内容。
type PlayerSeedUpdate struct {
	PlayerID          string
	Username          string
	AvailabilityHours *int
	Timezone          *string
	PlayerTypeID      *int
	ColorMask         *int
	SkillIDs          []string
}
