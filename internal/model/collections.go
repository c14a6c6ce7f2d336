package model

// Firestore collection names.
const (
	CollectionProjects       = "projects"
	CollectionTasks          = "tasks"
	CollectionParticipations = "participations"
	CollectionUsers          = "users"
)

// Document field names used by query filters.
const (
	FieldProjectID  = "projectId"
	FieldUserID     = "userId"
	FieldAssignedTo = "assignedTo"
	FieldStatus     = "status"
	FieldPriority   = "priority"
	FieldIsPublic   = "isPublic"
	FieldIsArchived = "isArchived"
	FieldCreatedAt  = "createdAt"
	FieldDueDate    = "dueDate"

	// FilterByUser is a pseudo-filter resolved against the caller's
	// participations before the query reaches the store.
	FilterByUser = "filterByUser"
)

// Cache tags. Mutations invalidate these after a successful write.
const (
	TagProjectList = "project-list"
	TagTaskList    = "task-list"
)

func TagProjectDetail(idOrSlug string) string { return "project-detail:" + idOrSlug }

func TagTaskDetail(id string) string { return "task-detail:" + id }
