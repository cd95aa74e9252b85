package domain

import "time"

// Status is the lifecycle state of a complexity scoring job
type Status string

// Job status constants
const (
	JobStatusPending    Status = "pending"
	JobStatusInProgress Status = "in_progress"
	JobStatusCompleted  Status = "completed"
	JobStatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status carries a result
func (s Status) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s Status) String() string {
	return string(s)
}

// Job is a single batch scoring request.
//
// Scores is only populated once the job is completed and Error only once it
// has failed; both are empty while the job is pending or in progress.
// Attempt is the execution attempt that owns the record, starting at 1.
type Job struct {
	ID        string
	Status    Status
	Words     []string
	Scores    map[string]float64
	Error     string
	Attempt   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result returns the status-dependent payload of the job: the scores map for
// completed jobs, the error message for failed jobs and nil otherwise.
func (j *Job) Result() any {
	switch j.Status {
	case JobStatusCompleted:
		return j.Scores
	case JobStatusFailed:
		return j.Error
	default:
		return nil
	}
}

// Clone returns a deep copy of the job
func (j *Job) Clone() *Job {
	c := *j
	c.Words = append([]string(nil), j.Words...)
	if j.Scores != nil {
		c.Scores = make(map[string]float64, len(j.Scores))
		for k, v := range j.Scores {
			c.Scores[k] = v
		}
	}
	return &c
}

// allowedSources lists, per target status, the statuses a record may be in
// for the transition to succeed. Repeating a transition is always allowed.
var allowedSources = map[Status][]Status{
	JobStatusPending:    {JobStatusPending, JobStatusFailed},
	JobStatusInProgress: {JobStatusPending, JobStatusInProgress},
	JobStatusCompleted:  {JobStatusInProgress, JobStatusCompleted},
	JobStatusFailed:     {JobStatusInProgress, JobStatusFailed},
}

// AllowedSources returns the statuses from which a transition to target is
// permitted.
func AllowedSources(target Status) []Status {
	return append([]Status(nil), allowedSources[target]...)
}

// CanTransition reports whether a record in status from may move to status to
func CanTransition(from, to Status) bool {
	for _, s := range allowedSources[to] {
		if s == from {
			return true
		}
	}
	return false
}

// CanReopen reports whether the job may move back to pending for attempt.
// A failed job only reopens for an attempt newer than the one that failed it,
// so a redelivered retry task cannot run the same attempt twice.
func (j *Job) CanReopen(attempt int) bool {
	switch j.Status {
	case JobStatusFailed:
		return attempt > j.Attempt
	case JobStatusPending:
		return attempt >= j.Attempt
	default:
		return false
	}
}
