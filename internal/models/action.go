package models

import (
	"math"
	"strings"
)

// ActionType is the polarity of an action
type ActionType string

const (
	ActionGood ActionType = "good"
	ActionBad  ActionType = "bad"
)

// Valid reports whether t is a known polarity
func (t ActionType) Valid() bool {
	return t == ActionGood || t == ActionBad
}

// Action is a loggable behavior. Its category is encoded in the id prefix.
type Action struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Type  ActionType `json:"type"`
	Value float64    `json:"value"`
}

// Category returns the category derived from the action id
func (a Action) Category() Category {
	return CategoryOf(a.ID)
}

// NormalizeValue forces the sign of v to match t: good is non-negative, bad is non-positive.
func NormalizeValue(t ActionType, v float64) float64 {
	if t == ActionBad {
		return -math.Abs(v)
	}
	return math.Abs(v)
}

// Category groups actions for statistics and display
type Category string

const (
	CategorySchool   Category = "school"
	CategoryHome     Category = "home"
	CategoryBehavior Category = "behavior"
	CategoryHygiene  Category = "hygiene"
	CategoryMeals    Category = "meals"
	CategorySleep    Category = "sleep"
	CategoryOther    Category = "other"
)

// categoryPrefixes maps the two-letter id prefixes to categories.
// Long prefixes written by older clients are accepted too.
var categoryPrefixes = []struct {
	prefix   string
	category Category
}{
	{"sc", CategorySchool},
	{"hm", CategoryHome},
	{"bh", CategoryBehavior},
	{"hy", CategoryHygiene},
	{"tb", CategoryMeals},
	{"sl", CategorySleep},
	{"home", CategoryHome},
	{"behav", CategoryBehavior},
}

// Categories lists the known categories in display order
var Categories = []Category{
	CategorySchool, CategoryHome, CategoryBehavior, CategoryHygiene, CategoryMeals, CategorySleep,
}

// CategoryOf classifies an action id by its prefix
func CategoryOf(id string) Category {
	for _, p := range categoryPrefixes {
		if strings.HasPrefix(id, p.prefix) {
			return p.category
		}
	}
	return CategoryOther
}

// PrefixOf returns the canonical two-letter prefix for a category, or "" for other
func PrefixOf(c Category) string {
	for _, p := range categoryPrefixes[:6] {
		if p.category == c {
			return p.prefix
		}
	}
	return ""
}
