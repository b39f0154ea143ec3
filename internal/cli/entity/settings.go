package entity

// Settings is the per-user CLI configuration persisted under ~/.appforge.
type Settings struct {
	ForgeAddress string `json:"forgeAddress"`
	AccountKey   string `json:"accountKey"`
	AppleID      string `json:"appleId,omitempty"`
}
