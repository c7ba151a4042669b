// Package access is the role capability table. Handlers look a role up once per
// request and consult the result instead of branching on role names.
package access

import (
	"gymbody/internal/models"
)

type View string

const (
	ViewHome      View = "home"
	ViewSchedule  View = "schedule"
	ViewBookings  View = "bookings"
	ViewMembers   View = "members"
	ViewCheckins  View = "checkins"
	ViewPayments  View = "payments"
	ViewAnalytics View = "analytics"
	ViewIncidents View = "incidents"
	ViewTrainers  View = "trainers"
	ViewChat      View = "chat"
	ViewTrainer   View = "trainer"
	ViewNutrition View = "nutrition"
	ViewProgress  View = "progress"
	ViewSettings  View = "settings"
)

type Action string

const (
	ActionBookSelf        Action = "book_self"
	ActionBookClient      Action = "book_client"
	ActionViewMembers     Action = "view_members"
	ActionViewPayments    Action = "view_payments"
	ActionViewAnalytics   Action = "view_analytics"
	ActionManageIncidents Action = "manage_incidents"
	ActionManageTrainers  Action = "manage_trainers"
	ActionExport          Action = "export"
	ActionChatFrontDesk   Action = "chat_front_desk"
	ActionChatTrainer     Action = "chat_trainer"
	ActionChatNutrition   Action = "chat_nutrition"
	ActionCheckIn         Action = "check_in"
)

// Capabilities is what one role may see and do.
type Capabilities struct {
	Role       models.Role
	Staff      bool
	Views      []View
	Actions    []Action
	Categories []models.Category
}

func (c Capabilities) Can(a Action) bool {
	for _, x := range c.Actions {
		if x == a {
			return true
		}
	}
	return false
}

func (c Capabilities) CanView(v View) bool {
	for _, x := range c.Views {
		if x == v {
			return true
		}
	}
	return false
}

// CanBookCategory reports whether sessions of this category are visible and bookable.
func (c Capabilities) CanBookCategory(cat models.Category) bool {
	for _, x := range c.Categories {
		if x == cat {
			return true
		}
	}
	return false
}

var (
	staffViews = []View{
		ViewHome, ViewSchedule, ViewBookings, ViewMembers, ViewCheckins, ViewPayments,
		ViewAnalytics, ViewIncidents, ViewTrainers, ViewChat, ViewSettings,
	}
	clientViews = []View{
		ViewHome, ViewSchedule, ViewBookings, ViewChat, ViewTrainer, ViewNutrition,
		ViewProgress, ViewSettings,
	}
	clientActions = []Action{
		ActionBookSelf, ActionChatFrontDesk, ActionChatTrainer, ActionChatNutrition,
	}
)

var table = map[models.Role]Capabilities{
	models.RoleOwner: {
		Staff: true,
		Views: staffViews,
		Actions: []Action{
			ActionBookClient, ActionViewMembers, ActionViewPayments, ActionViewAnalytics,
			ActionManageIncidents, ActionManageTrainers, ActionExport, ActionChatFrontDesk, ActionCheckIn,
		},
		Categories: models.AllCategories,
	},
	models.RoleAdmin: {
		Staff: true,
		Views: staffViews,
		Actions: []Action{
			ActionBookClient, ActionViewMembers, ActionViewPayments, ActionViewAnalytics,
			ActionManageIncidents, ActionManageTrainers, ActionExport, ActionChatFrontDesk, ActionCheckIn,
		},
		Categories: models.AllCategories,
	},
	models.RoleTrainer: {
		Staff:      true,
		Views:      []View{ViewHome, ViewSchedule, ViewBookings, ViewMembers, ViewCheckins, ViewChat, ViewSettings},
		Actions:    []Action{ActionBookClient, ActionViewMembers, ActionChatFrontDesk, ActionCheckIn},
		Categories: models.AllCategories,
	},
	models.RoleMember: {
		Views:      clientViews,
		Actions:    clientActions,
		Categories: models.AllCategories,
	},
	models.RoleClientOG: {
		Views:      clientViews,
		Actions:    clientActions,
		Categories: []models.Category{models.CategoryOpenGym},
	},
	models.RoleClientSP: {
		Views:      clientViews,
		Actions:    clientActions,
		Categories: []models.Category{models.CategorySemiPersonal},
	},
}

// For returns the capabilities of a role. Unknown roles get nothing.
func For(role models.Role) Capabilities {
	c, ok := table[role]
	if !ok {
		return Capabilities{Role: role}
	}
	c.Role = role
	return c
}
