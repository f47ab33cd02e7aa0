package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" student ")
	assert.True(t, ok)
	assert.Equal(t, RoleStudent, role)
	assert.Equal(t, "/student", role.HomePath())

	_, ok = ParseRole("SUPERADMIN")
	assert.False(t, ok)
}

func TestLayoutVariantKeys(t *testing.T) {
	assert.Equal(t, "unifiedNavCollapsed", LayoutUnified.StorageKey())
	assert.Equal(t, "mainSidebarCollapsed", LayoutMain.StorageKey())
	assert.Equal(t, "teacherSidebarCollapsed", LayoutTeacher.StorageKey())

	v, ok := ParseLayoutVariant("teacherSidebarCollapsed")
	assert.True(t, ok)
	assert.Equal(t, LayoutTeacher, v)

	_, ok = ParseLayoutVariant("parentSidebarCollapsed")
	assert.False(t, ok)
}

func TestNavigationConfigCloneIsDeep(t *testing.T) {
	original := NavigationConfig{
		Title:    "Student Portal",
		Sections: []NavigationSection{{Title: "Academic", Items: []NavigationItem{{Text: "Grades", Path: "/student/grades"}}}},
	}

	clone := original.Clone()
	clone.Sections[0].Items[0].Path = "/hacked"
	clone.Sections[0].Title = "changed"

	assert.Equal(t, "/student/grades", original.Sections[0].Items[0].Path)
	assert.Equal(t, "Academic", original.Sections[0].Title)
}

func TestNotificationVisibleTo(t *testing.T) {
	recipient := "u1"
	direct := Notification{RecipientID: &recipient}
	global := Notification{IsGlobal: true}

	assert.True(t, direct.VisibleTo("u1"))
	assert.False(t, direct.VisibleTo("u2"))
	assert.True(t, global.VisibleTo("u2"))
	assert.False(t, (&Notification{}).VisibleTo("u1"))
}
