package notifications

var categoryByType = map[Type]Category{
	TypeAnnouncement:        CategoryAdministrative,
	TypeLeaveRequest:        CategoryAdministrative,
	TypeTimesheet:           CategoryAdministrative,
	TypeTimesheetSubmission: CategoryAdministrative,
	TypeProjectUpdate:       CategoryProject,
	TypeSprintUpdate:        CategoryProject,
	TypeTaskCreated:         CategoryTask,
	TypeTaskUpdated:         CategoryTask,
	TypeTaskAssigned:        CategoryTask,
	TypeTaskComment:         CategoryTask,
	TypeTaskStatusChange:    CategoryTask,
	TypeSystemAlert:         CategorySystem,
	TypeUrgent:              CategorySystem,
	TypeMeeting:             CategoryCommunication,
	TypeTeamCommunication:   CategoryCommunication,
	TypeAchievement:         CategoryAchievement,
}

// CategoryFor maps a type to its UI category. Unknown types land in system.
func CategoryFor(t Type) Category {
	if c, ok := categoryByType[t]; ok {
		return c
	}
	return CategorySystem
}
