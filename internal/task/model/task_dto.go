package model

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=100"`
	Description string `json:"description"`
	Command     string `json:"command" binding:"required"`
	Framework   string `json:"framework"`
	AssignedTo  string `json:"assignedTo"`
}

// TaskListResult is one page of the task catalog.
type TaskListResult struct {
	TotalCount int64  `json:"totalCount"`
	Items      []Task `json:"items"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
}
