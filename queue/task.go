// Package queue provides the delayed, prioritized task queues that drive
// warmup exchanges, with redis-backed and in-memory implementations.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the stage a task belongs to. Each type drains through
// its own queue and worker pool.
type TaskType string

const (
	TaskSend            TaskType = "send"
	TaskReceive         TaskType = "receive"
	TaskEngage          TaskType = "engage"
	TaskRescue          TaskType = "rescue"
	TaskReputationCheck TaskType = "reputation_check"
)

// String returns the string representation of the task type
func (t TaskType) String() string {
	return string(t)
}

// Valid checks if the task type is valid
func (t TaskType) Valid() bool {
	switch t {
	case TaskSend, TaskReceive, TaskEngage, TaskRescue, TaskReputationCheck:
		return true
	default:
		return false
	}
}

// AllTaskTypes lists every stage in processing order
func AllTaskTypes() []TaskType {
	return []TaskType{TaskSend, TaskReceive, TaskEngage, TaskRescue, TaskReputationCheck}
}

// Task priorities. Lower executes first under contention.
const (
	PriorityIdeal     = 1
	PrioritySecondary = 2
	PriorityFallback  = 3
)

// Task is one scheduled unit of warmup work. Tasks are ephemeral; they exist
// only inside a queue and are dropped once executed or exhausted.
type Task struct {
	ID               string    `json:"id"`
	Type             TaskType  `json:"type"`
	SenderAccountID  uint      `json:"sender_account_id"`
	PartnerAccountID uint      `json:"partner_account_id,omitempty"`
	SessionID        uint      `json:"session_id,omitempty"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	Priority         int       `json:"priority"`
	Attempts         int       `json:"attempts"`
	EnqueuedAt       time.Time `json:"enqueued_at"`

	// Extension holds narrowly scoped extra attributes (e.g. the engage
	// action name). Keep it small; typed fields are preferred.
	Extension map[string]string `json:"extension,omitempty"`
}

// NewTask builds a task due at the given time
func NewTask(typ TaskType, senderAccountID, partnerAccountID, sessionID uint, at time.Time, priority int) *Task {
	if priority < PriorityIdeal || priority > PriorityFallback {
		priority = PriorityFallback
	}
	return &Task{
		ID:               uuid.New().String(),
		Type:             typ,
		SenderAccountID:  senderAccountID,
		PartnerAccountID: partnerAccountID,
		SessionID:        sessionID,
		ScheduledAt:      at.UTC(),
		Priority:         priority,
		EnqueuedAt:       time.Now().UTC(),
	}
}

// WithExtension attaches one extension attribute and returns the task
func (t *Task) WithExtension(key, value string) *Task {
	if t.Extension == nil {
		t.Extension = make(map[string]string, 1)
	}
	t.Extension[key] = value
	return t
}

// Due reports whether the task may execute at the given time
func (t *Task) Due(now time.Time) bool {
	return !t.ScheduledAt.After(now)
}
