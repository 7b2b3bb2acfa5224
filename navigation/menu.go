package navigation

import "github.com/cccteam/websession/roles"

// DefaultMenu is the application menu.
var DefaultMenu = []Entry{
	{Label: "Dashboard", Icon: "dashboard", Path: "/dashboard"},
	{Label: "Companies", Icon: "business", Path: "/companies", AllowedRoles: roles.Collection{roles.Admin}},
	{Label: "Employees", Icon: "people", Path: "/employees", AllowedRoles: roles.Collection{roles.Admin, roles.HR, roles.Manager}, RequiresTenant: true},
	{Label: "Departments", Icon: "account_tree", Path: "/departments", AllowedRoles: roles.Collection{roles.Admin, roles.HR}, RequiresTenant: true},
	{Label: "Attendance", Icon: "schedule", Path: "/attendance", RequiresTenant: true},
	{Label: "Shifts", Icon: "calendar_month", Path: "/shifts", AllowedRoles: roles.Collection{roles.Admin, roles.HR, roles.Manager}, RequiresTenant: true},
	{Label: "Leave Requests", Icon: "event_busy", Path: "/leave-requests", RequiresTenant: true},
	{Label: "Tickets", Icon: "support", Path: "/tickets"},
	{Label: "Announcements", Icon: "campaign", Path: "/announcements", RequiresTenant: true},
	{Label: "Accounting", Icon: "account_balance", Path: "/accounting", AllowedRoles: roles.Collection{roles.Admin, roles.HR}, RequiresTenant: true},
	{Label: "Payroll", Icon: "payments", Path: "/payroll", AllowedRoles: roles.Collection{roles.Admin, roles.HR}, RequiresTenant: true},
	{Label: "Reports", Icon: "insights", Path: "/reports", AllowedRoles: roles.Collection{roles.Admin, roles.HR, roles.Manager}},
	{Label: "Monitoring", Icon: "monitor_heart", Path: "/monitoring", AllowedRoles: roles.Collection{roles.Admin}},
	{Label: "Settings", Icon: "settings", Path: "/settings"},
}
