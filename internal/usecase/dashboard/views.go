// Package dashboard renders the role-gated report views from one table of
// view definitions.
package dashboard

import "github.com/pashumandi/mandi-gateway/internal/guard"

type Dataset string

const (
	DatasetStats           Dataset = "stats"
	DatasetPendingListings Dataset = "pendingListings"
	DatasetAllListings     Dataset = "allListings"
	DatasetMyListings      Dataset = "myListings"
	DatasetRegisteredUsers Dataset = "registeredUsers"
	DatasetUserActivity    Dataset = "userActivity"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionDelete  Action = "delete"
	ActionUpdate  Action = "update"
)

type SectionSpec struct {
	Title   string
	Dataset Dataset
	Columns []string
	Actions []Action
	// PendingFirst floats pending listings above the rest.
	PendingFirst bool
}

type View struct {
	Name        string
	Title       string
	Requirement guard.Requirement
	Sections    []SectionSpec
}

var (
	listingColumns = []string{"id", "title", "category", "price", "location", "status", "owner", "timestamp"}
	userColumns    = []string{"#", "principal", "mobile_number"}
)

var views = []View{
	{
		Name:        "admin",
		Title:       "Admin Dashboard",
		Requirement: guard.RequireAdmin,
		Sections: []SectionSpec{
			{Title: "Overview", Dataset: DatasetStats, Columns: []string{"metric", "value"}},
			{Title: "Pending Approval", Dataset: DatasetPendingListings, Columns: listingColumns,
				Actions: []Action{ActionApprove, ActionReject, ActionDelete}},
			{Title: "All Listings", Dataset: DatasetAllListings, Columns: listingColumns,
				Actions: []Action{ActionDelete}},
		},
	},
	{
		Name:        "dashboard",
		Title:       "My Dashboard",
		Requirement: guard.RequireSignedIn,
		Sections: []SectionSpec{
			{Title: "My Listings", Dataset: DatasetMyListings, Columns: listingColumns,
				Actions: []Action{ActionUpdate, ActionDelete}},
		},
	},
	{
		Name:        "management",
		Title:       "Management",
		Requirement: guard.RequireManagement,
		Sections: []SectionSpec{
			{Title: "Registered Users", Dataset: DatasetRegisteredUsers, Columns: userColumns},
			{Title: "All Listings", Dataset: DatasetAllListings, Columns: listingColumns},
		},
	},
	{
		Name:        "owner-view",
		Title:       "Owner View",
		Requirement: guard.RequireOwner,
		Sections: []SectionSpec{
			{Title: "Overview", Dataset: DatasetStats, Columns: []string{"metric", "value"}},
			{Title: "Registered Users", Dataset: DatasetRegisteredUsers, Columns: userColumns},
			{Title: "User Activity", Dataset: DatasetUserActivity, Columns: []string{"principal", "display_name", "last_login"}},
			{Title: "All Listings", Dataset: DatasetAllListings, Columns: listingColumns,
				Actions: []Action{ActionApprove}, PendingFirst: true},
		},
	},
	{
		Name:        "tracker",
		Title:       "Cattle Tracker",
		Requirement: guard.RequireTracker,
		Sections: []SectionSpec{
			{Title: "Registered Users", Dataset: DatasetRegisteredUsers, Columns: userColumns},
			{Title: "All Listings", Dataset: DatasetAllListings, Columns: listingColumns},
		},
	},
}

var byName = func() map[string]View {
	m := make(map[string]View, len(views))
	for _, v := range views {
		m[v.Name] = v
	}
	return m
}()

func Lookup(name string) (View, bool) {
	v, ok := byName[name]
	return v, ok
}

// Views returns every view definition in menu order.
func Views() []View {
	return append([]View(nil), views...)
}
