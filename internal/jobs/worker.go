package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobStore is the slice of Repo the worker needs.
type JobStore interface {
	Claim(workerID string) (*Job, error)
	MarkDone(id uint64) error
	MarkFailed(id uint64, errMsg string) error
	RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error
}

// DueTask is the slice of a task that reminder dispatch needs.
type DueTask struct {
	ID        uint64
	UserID    uint64
	Title     string
	Completed bool
	DueAt     *time.Time
}

// DueTaskSource looks up the task a reminder job points at.
// Find returns nil when the task no longer exists.
type DueTaskSource interface {
	Find(taskID, userID uint64) (*DueTask, error)
}

type Worker struct {
	ID    string
	Repo  JobStore
	Tasks DueTaskSource
	Log   *zap.Logger
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(800 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(w.ID)
			if err != nil {
				w.Log.Error("worker claim failed", zap.Error(err))
				continue
			}
			if job == nil {
				continue
			}
			w.handle(job)
		}
	}
}

func (w *Worker) handle(job *Job) {
	switch job.Type {
	case TypeDueReminder:
		w.handleDueReminder(job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handleDueReminder(job *Job) {
	var p struct {
		TaskID uint64 `json:"task_id"`
	}
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	t, err := w.Tasks.Find(p.TaskID, job.UserID)
	if err != nil {
		w.retry(job, "db read error")
		return
	}
	// gone, finished, or due date cleared since enqueue: nothing to say
	if t == nil || t.Completed || t.DueAt == nil {
		_ = w.Repo.MarkDone(job.ID)
		return
	}

	w.Log.Info("task due",
		zap.Uint64("user_id", t.UserID),
		zap.Uint64("task_id", t.ID),
		zap.String("title", t.Title),
	)
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) retry(job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := time.Now().Add(time.Duration(sec) * time.Second)

	_ = w.Repo.RetryLater(job.ID, attempts, next, errMsg)
}

type taskRow struct {
	ID        uint64     `gorm:"column:id"`
	UserID    uint64     `gorm:"column:user_id"`
	Title     string     `gorm:"column:title"`
	Completed bool       `gorm:"column:completed"`
	DueAt     *time.Time `gorm:"column:due_at"`
}

func (taskRow) TableName() string { return "tasks" }

// TaskSource reads tasks for the worker.
type TaskSource struct {
	DB *gorm.DB
}

func (s *TaskSource) Find(taskID, userID uint64) (*DueTask, error) {
	var row taskRow
	err := s.DB.Where("id = ? AND user_id = ?", taskID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &DueTask{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Completed: row.Completed,
		DueAt:     row.DueAt,
	}, nil
}
