package qwen

// TaskState is the upstream task_status value.
type TaskState string

const (
	TaskStateSuccess TaskState = "success"
	TaskStateFailed  TaskState = "failed"
)

// TaskStatus is the decoded answer of the task status endpoint.
type TaskStatus struct {
	TaskID  string
	State   TaskState
	Content string
	Message string
}

// Succeeded reports whether the task finished with a result.
func (s TaskStatus) Succeeded() bool { return s.State == TaskStateSuccess }

// Failed reports whether the upstream gave up on the task.
func (s TaskStatus) Failed() bool {
	switch s.State {
	case TaskStateFailed, "fail", "error", "cancelled", "canceled":
		return true
	}
	return false
}
