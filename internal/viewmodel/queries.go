package viewmodel

import (
	"time"

	"committeeDashboard/internal/dataservice"
)

var personColumns = []string{"id", "name", "avatar"}

func toOne(name, entity, key string, columns ...string) Expansion {
	return Expansion{Relation: dataservice.Relation{Name: name, Kind: dataservice.ToOne, Entity: entity, Key: key, Columns: columns}}
}

func count(name, entity, key string) Expansion {
	return Expansion{Relation: dataservice.Relation{Name: name, Kind: dataservice.Count, Entity: entity, Key: key}}
}

// joined profiles through a join table, lifted to the profile rows
func joinedPeople(name, joinTable, key string) Expansion {
	return Expansion{
		Relation: dataservice.Relation{
			Name:    name,
			Kind:    dataservice.ToMany,
			Entity:  joinTable,
			Key:     key,
			Columns: []string{"profile_id"},
			Relations: []dataservice.Relation{
				{Name: "profile", Kind: dataservice.ToOne, Entity: "profiles", Key: "profile_id", Columns: personColumns},
			},
		},
		Lift: "profile",
	}
}

func meetingExpansions() []Expansion {
	return []Expansion{
		toOne("organizer", "profiles", "organizer_id", personColumns...),
		toOne("committee", "committees", "committee_id", "name"),
		count("attendee_count", "meeting_attendees", "meeting_id"),
	}
}

// MeetingsSpec lists every meeting by start time.
func MeetingsSpec() Spec {
	return Spec{
		Name:       "meetings",
		Entity:     "meetings",
		Expansions: meetingExpansions(),
		Order:      dataservice.Asc("start_time"),
	}
}

// UpcomingMeetingsSpec lists the next meetings starting at or after now.
func UpcomingMeetingsSpec(now time.Time, limit int) Spec {
	return Spec{
		Name:       "upcomingMeetings",
		Entity:     "meetings",
		Expansions: meetingExpansions(),
		Filters:    []dataservice.Filter{dataservice.Gte("start_time", now)},
		Order:      dataservice.Asc("start_time"),
		Limit:      limit,
	}
}

// WeekMeetingsSpec lists meetings starting within [from, to).
func WeekMeetingsSpec(from, to time.Time) Spec {
	return Spec{
		Name:       "weekMeetings",
		Entity:     "meetings",
		Expansions: meetingExpansions(),
		Filters:    []dataservice.Filter{dataservice.Gte("start_time", from), dataservice.Lt("start_time", to)},
		Order:      dataservice.Asc("start_time"),
	}
}

// MeetingDetailSpec reads one meeting with attendees, documents and agenda.
func MeetingDetailSpec(id string) Spec {
	exps := meetingExpansions()
	exps = append(exps,
		Expansion{Relation: dataservice.Relation{
			Name: "attendees", Kind: dataservice.ToMany, Entity: "meeting_attendees", Key: "meeting_id",
			Columns: []string{"status"},
			Relations: []dataservice.Relation{
				{Name: "profile", Kind: dataservice.ToOne, Entity: "profiles", Key: "profile_id", Columns: personColumns},
			},
		}},
		Expansion{Relation: dataservice.Relation{
			Name: "documents", Kind: dataservice.ToMany, Entity: "documents", Key: "meeting_id",
			Columns: []string{"id", "title", "url", "uploaded_at"}, Order: dataservice.Desc("uploaded_at"),
		}},
		Expansion{Relation: dataservice.Relation{
			Name: "agenda_items", Kind: dataservice.ToMany, Entity: "agenda_items", Key: "meeting_id",
			Columns: []string{"id", "title", "description", "duration", "order_index", "status"}, Order: dataservice.Asc("order_index"),
		}},
	)
	return Spec{
		Name:       "meetingDetail",
		Entity:     "meetings",
		Expansions: exps,
		Filters:    []dataservice.Filter{dataservice.Eq("id", id)},
		Limit:      1,
	}
}

// DocumentsSpec lists documents newest first; limit 0 means all.
func DocumentsSpec(limit int) Spec {
	return Spec{
		Name:   "documents",
		Entity: "documents",
		Expansions: []Expansion{
			toOne("uploader", "profiles", "uploaded_by", personColumns...),
			toOne("meeting", "meetings", "meeting_id", "title"),
		},
		Order: dataservice.Desc("uploaded_at"),
		Limit: limit,
	}
}

// ActionItemsSpec lists action items by due date; limit 0 means all.
func ActionItemsSpec(limit int) Spec {
	return Spec{
		Name:   "actionItems",
		Entity: "action_items",
		Expansions: []Expansion{
			toOne("meeting", "meetings", "meeting_id", "title"),
			joinedPeople("assignees", "action_item_assignees", "action_item_id"),
		},
		Order: dataservice.Asc("due_date"),
		Limit: limit,
	}
}

// CommitteesSpec lists committees by name with chair, member count and members.
func CommitteesSpec() Spec {
	return Spec{
		Name:   "committees",
		Entity: "committees",
		Expansions: []Expansion{
			toOne("chair", "profiles", "chair_id", personColumns...),
			count("member_count", "committee_members", "committee_id"),
			joinedPeople("members", "committee_members", "committee_id"),
		},
		Order: dataservice.Asc("name"),
	}
}

// CommitteeOptionsSpec lists committee ids and names for pickers.
func CommitteeOptionsSpec() Spec {
	return Spec{Name: "committeeOptions", Entity: "committees", Columns: []string{"id", "name"}, Order: dataservice.Asc("name")}
}

// MeetingOptionsSpec lists meeting ids and titles for pickers.
func MeetingOptionsSpec() Spec {
	return Spec{Name: "meetingOptions", Entity: "meetings", Columns: []string{"id", "title"}, Order: dataservice.Desc("start_time")}
}

// ProfilesSpec lists people by name.
func ProfilesSpec() Spec {
	return Spec{Name: "profiles", Entity: "profiles", Columns: []string{"id", "name", "email", "role", "avatar", "department"}, Order: dataservice.Asc("name")}
}
