// Package render turns view records into display values: list states,
// badges, avatars, formatted times and dashboard summaries. Nothing here
// performs I/O.
package render

import "strings"

// DefaultBadgeClass styles any status without an entry of its own.
const DefaultBadgeClass = "bg-gray-100 text-gray-800 hover:bg-gray-200"

// BadgeTable maps status values to badge classes.
type BadgeTable map[string]string

// Class returns the badge class for status, or DefaultBadgeClass.
func (t BadgeTable) Class(status string) string {
	if c, ok := t[status]; ok {
		return c
	}
	return DefaultBadgeClass
}

var (
	MeetingBadges = BadgeTable{
		"scheduled":   "bg-blue-100 text-blue-800 hover:bg-blue-200",
		"in_progress": "bg-green-100 text-green-800 hover:bg-green-200",
		"completed":   "bg-gray-100 text-gray-800 hover:bg-gray-200",
		"cancelled":   "bg-red-100 text-red-800 hover:bg-red-200",
	}
	ActionItemBadges = BadgeTable{
		"pending":     "bg-gray-100 text-gray-800 hover:bg-gray-200",
		"in_progress": "bg-blue-100 text-blue-800 hover:bg-blue-200",
		"completed":   "bg-green-100 text-green-800 hover:bg-green-200",
	}
	AttendanceBadges = BadgeTable{
		"accepted":  "bg-green-100 text-green-800 hover:bg-green-200",
		"declined":  "bg-red-100 text-red-800 hover:bg-red-200",
		"tentative": "bg-yellow-100 text-yellow-800 hover:bg-yellow-200",
		"pending":   "bg-gray-100 text-gray-800 hover:bg-gray-200",
	}
	AgendaBadges = BadgeTable{
		"pending":     "bg-gray-100 text-gray-800 hover:bg-gray-200",
		"in_progress": "bg-blue-100 text-blue-800 hover:bg-blue-200",
		"completed":   "bg-green-100 text-green-800 hover:bg-green-200",
		"deferred":    "bg-amber-100 text-amber-800 hover:bg-amber-200",
	}
)

var badgeTables = map[string]BadgeTable{
	"meeting":    MeetingBadges,
	"action":     ActionItemBadges,
	"attendance": AttendanceBadges,
	"agenda":     AgendaBadges,
}

// Badge is a rendered status badge.
type Badge struct {
	Label string
	Class string
}

// StatusBadge renders status using the named table ("meeting", "action",
// "attendance" or "agenda"). Unknown tables and statuses get the default.
func StatusBadge(table, status string) Badge {
	return Badge{Label: StatusLabel(status), Class: badgeTables[table].Class(status)}
}

// StatusLabel replaces the first underscore with a space.
func StatusLabel(status string) string {
	return strings.Replace(status, "_", " ", 1)
}
