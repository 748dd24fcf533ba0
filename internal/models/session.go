package models

// Theme is the UI color scheme preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the other theme
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// SyncMode is where state is persisted
type SyncMode string

const (
	ModeGuest      SyncMode = "guest"
	ModeAccount    SyncMode = "account"
	ModeFamilyCode SyncMode = "family_code"
)

// SessionState is the observable session/sync state
type SessionState struct {
	Theme    Theme    `json:"theme"`
	HasPin   bool     `json:"hasPin"`
	FamilyID string   `json:"familyId,omitempty"`
	UserID   string   `json:"userId,omitempty"`
	Mode     SyncMode `json:"mode"`
}
