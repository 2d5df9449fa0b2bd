package render

import "committeeDashboard/internal/viewmodel"

// Kind identifies a list view.
type Kind string

const (
	KindMeetings    Kind = "meetings"
	KindDocuments   Kind = "documents"
	KindActionItems Kind = "action_items"
	KindCommittees  Kind = "committees"
	KindWidget      Kind = "widget"
)

// ListState is what a list renders.
type ListState string

const (
	StateLoading ListState = "loading"
	StateEmpty   ListState = "empty"
	StateLoaded  ListState = "loaded"
)

// EmptyState is the call to action shown for an empty list. Dialog names
// the mutation dialog the button opens.
type EmptyState struct {
	Title       string
	Description string
	Action      string
	Dialog      string
}

var skeletonCounts = map[Kind]int{
	KindMeetings:    3,
	KindDocuments:   6,
	KindActionItems: 5,
	KindCommittees:  3,
	KindWidget:      3,
}

var emptyStates = map[Kind]EmptyState{
	KindMeetings: {
		Title:       "No meetings found",
		Description: "Get started by scheduling a new meeting.",
		Action:      "Schedule Meeting",
		Dialog:      "schedule-meeting",
	},
	KindDocuments: {
		Title:       "No documents found",
		Description: "Get started by uploading a new document.",
		Action:      "Upload Document",
		Dialog:      "upload-document",
	},
	KindActionItems: {
		Title:       "No action items found",
		Description: "Get started by creating a new action item.",
		Action:      "Create Action Item",
		Dialog:      "create-action-item",
	},
	KindCommittees: {
		Title:       "No committees found",
		Description: "Get started by creating a new committee.",
		Action:      "Create Committee",
		Dialog:      "create-committee",
	},
}

// SkeletonCount is the number of placeholder cards shown while kind loads.
func SkeletonCount(kind Kind) int {
	if n, ok := skeletonCounts[kind]; ok {
		return n
	}
	return 3
}

// EmptyStateFor returns the call to action for kind.
func EmptyStateFor(kind Kind) EmptyState {
	return emptyStates[kind]
}

// List is the render model of a list view. Records is only set in the
// loaded state. Error carries a read failure shown above whatever the
// list still has.
type List struct {
	Kind      Kind
	State     ListState
	Skeletons []int
	Records   any
	Count     int
	Empty     EmptyState
	Error     string
	Token     string
}

// Loading reports the skeleton state.
func (l List) Loading() bool { return l.State == StateLoading }

// IsEmpty reports the empty state.
func (l List) IsEmpty() bool { return l.State == StateEmpty }

// NewList derives the list render model from a view snapshot. A loading
// snapshot yields skeletons only; its records are not consulted.
func NewList(kind Kind, snap viewmodel.Snapshot) List {
	l := List{Kind: kind, Empty: EmptyStateFor(kind)}
	if snap.Loading() {
		l.State = StateLoading
		l.Skeletons = make([]int, SkeletonCount(kind))
		for i := range l.Skeletons {
			l.Skeletons[i] = i
		}
		return l
	}
	if snap.Status == viewmodel.Failed {
		l.Error = "We couldn't load the latest data. Showing what we have."
	}
	if snap.Count == 0 {
		l.State = StateEmpty
		return l
	}
	l.State = StateLoaded
	l.Records = snap.Records
	l.Count = snap.Count
	return l
}
