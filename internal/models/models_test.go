package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				Token:     "token",
				UserID:    "user-1",
				ExpiresAt: tt.expiresAt,
			}
			if got := session.IsExpired(); got != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		id   string
		want Category
	}{
		{"sc_1", CategorySchool},
		{"sc_bad_2", CategorySchool},
		{"hm_1700000000000", CategoryHome},
		{"bh_3", CategoryBehavior},
		{"hy_1", CategoryHygiene},
		{"tb_2", CategoryMeals},
		{"sl_1", CategorySleep},
		{"home_4", CategoryHome},
		{"behav_bad_1", CategoryBehavior},
		{"custom_1", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := CategoryOf(tt.id); got != tt.want {
				t.Errorf("CategoryOf(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name  string
		typ   ActionType
		value float64
		want  float64
	}{
		{"bad positive", ActionBad, 1.0, -1.0},
		{"bad negative", ActionBad, -1.5, -1.5},
		{"good negative", ActionGood, -2.0, 2.0},
		{"good positive", ActionGood, 0.5, 0.5},
		{"zero", ActionGood, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeValue(tt.typ, tt.value); got != tt.want {
				t.Errorf("NormalizeValue(%v, %v) = %v, want %v", tt.typ, tt.value, got, tt.want)
			}
		})
	}
}

func TestPrefixOf(t *testing.T) {
	for _, c := range Categories {
		prefix := PrefixOf(c)
		if CategoryOf(prefix+"_1") != c {
			t.Errorf("PrefixOf(%v) = %q does not round-trip", c, prefix)
		}
	}
	if PrefixOf(CategoryOther) != "" {
		t.Errorf("other category should have no prefix")
	}
}

func TestChildCloneIsolatesHistory(t *testing.T) {
	c := Child{ID: "k1", History: []HistoryEntry{{Date: "01/01/2026", Score: 9}}}
	clone := c.Clone()
	clone.History[0].Score = 3

	if c.History[0].Score != 9 {
		t.Errorf("clone shares history with original")
	}
	if (Child{}).Clone().History == nil {
		t.Errorf("clone of empty child should have non-nil history")
	}
}

func TestThemeToggle(t *testing.T) {
	if ThemeLight.Toggle() != ThemeDark || ThemeDark.Toggle() != ThemeLight {
		t.Errorf("Toggle should alternate light and dark")
	}
	if Theme("").Toggle() != ThemeDark {
		t.Errorf("unset theme toggles to dark")
	}
}
