package models

import "time"

// LayoutVariant names one of the layout shells that remember their own
// sidebar state.
type LayoutVariant string

const (
	LayoutUnified LayoutVariant = "unified"
	LayoutMain    LayoutVariant = "main"
	LayoutTeacher LayoutVariant = "teacher"
)

// AllLayoutVariants lists every variant.
var AllLayoutVariants = []LayoutVariant{LayoutUnified, LayoutMain, LayoutTeacher}

// StorageKey returns the preference key for the variant, or "" if unknown.
func (v LayoutVariant) StorageKey() string {
	switch v {
	case LayoutUnified:
		return "unifiedNavCollapsed"
	case LayoutMain:
		return "mainSidebarCollapsed"
	case LayoutTeacher:
		return "teacherSidebarCollapsed"
	default:
		return ""
	}
}

// ParseLayoutVariant accepts either a variant name or its storage key.
func ParseLayoutVariant(raw string) (LayoutVariant, bool) {
	for _, v := range AllLayoutVariants {
		if raw == string(v) || raw == v.StorageKey() {
			return v, true
		}
	}
	return "", false
}

// LayoutPreference is the persisted collapse flag for one user and variant.
type LayoutPreference struct {
	UserID    string    `db:"user_id" json:"user_id"`
	LayoutKey string    `db:"layout_key" json:"layout_key"`
	Collapsed bool      `db:"collapsed" json:"collapsed"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
