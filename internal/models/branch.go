package models

// Branch is a pickup point. Preset branches carry a fixed location string;
// the custom branch has none and defers to the map.
type Branch struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location,omitempty" yaml:"location"`
	Address  string `json:"address,omitempty" yaml:"address"`
}

// IsCustom reports whether selecting this branch opens map selection.
func (b Branch) IsCustom() bool {
	return b.ID == BranchCustom
}

// DefaultBranches mirrors the branch list offered on the booking page.
func DefaultBranches() []Branch {
	return []Branch{
		{ID: "main", Name: "สาขาหลัก — รถเช่าอุดรฯ", Location: "17.386613, 102.776114", Address: "อุดรธานี"},
		{ID: "airport", Name: "สนามบินอุดรธานี", Location: "17.386613, 102.776114", Address: "ต.หมากแข้ง อ.เมือง จ.อุดรธานี 41000"},
		{ID: BranchCustom, Name: "อื่นๆ (เลือกบนแผนที่)"},
	}
}
