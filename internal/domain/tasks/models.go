package tasks

import "time"

const (
	LeaveStatus = "Leave"
)

// UniqueTask is one row of the UNIQUE tab: the master list of recurring
// tasks and who they are assigned to.
type UniqueTask struct {
	RowIndex        int    `json:"rowIndex"`
	TaskID          string `json:"taskId"`
	Department      string `json:"department"`
	GivenBy         string `json:"givenBy"`
	Name            string `json:"name"`
	TaskDescription string `json:"taskDescription"`
	EndDate         string `json:"endDate"`
	Frequency       string `json:"frequency"`
	Reminders       string `json:"reminders"`
	Attachment      string `json:"attachment"`
}

// ChecklistTask is one dated occurrence of a task on the Checklist tab.
type ChecklistTask struct {
	RowIndex      int        `json:"rowIndex"`
	TaskID        string     `json:"taskId"`
	Description   string     `json:"description"`
	Date          string     `json:"date"`
	TimestampDate string     `json:"timestampDate"`
	TimestampObj  *time.Time `json:"timestamp,omitempty"`
	Name          string     `json:"name"`
	IsPending     bool       `json:"isPending"`
	Remarks       string     `json:"remarks"`
}

// DateRange bounds checklist timestamps; a zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Open() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// LeaveRequest marks the selected checklist rows of one assignee as leave.
// Dates are YYYY-MM-DD.
type LeaveRequest struct {
	Assignee   string `json:"assignee" validate:"required"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	RowIndexes []int  `json:"rowIndexes"`
}

// LeaveItem is one entry of the updateTaskData payload.
type LeaveItem struct {
	TaskID     string `json:"taskId"`
	RowIndex   int    `json:"rowIndex"`
	Remarks    string `json:"remarks"`
	Status     string `json:"status"`
	ActualDate string `json:"actualDate"`
}

type LeaveResult struct {
	Submitted int         `json:"submitted"`
	Remarks   string      `json:"remarks"`
	Items     []LeaveItem `json:"items"`
}
