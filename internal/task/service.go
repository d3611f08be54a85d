package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("task not found")

// ReminderScheduler maintains the pending due-reminder job for a task.
// Both operations run on the caller's transaction so the job and the
// task row it points at commit together.
type ReminderScheduler interface {
	Enqueue(tx *gorm.DB, userID, taskID uint64, runAt time.Time) error
	Cancel(tx *gorm.DB, userID, taskID uint64) error
}

type Service struct {
	DB        *gorm.DB
	Reminders ReminderScheduler
}

type CreateInput struct {
	Title       string
	Description *string
	DueAt       *time.Time
}

// UpdateInput applies a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Completed   *bool
	DueAt       *time.Time
	ClearDueAt  bool
}

type ListFilter struct {
	Completed *bool
	Tag       string
	Query     string
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (Task, error) {
	t := Task{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		DueAt:       in.DueAt,
		Tags:        pq.StringArray(tagsFor(in.Title, in.Description)),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		// reminder job rides the same tx as the row it points at
		if in.DueAt != nil {
			return s.Reminders.Enqueue(tx, userID, t.ID, *in.DueAt)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, userID uint64, f ListFilter) ([]Task, error) {
	q := s.DB.WithContext(ctx).Model(&Task{}).Where("user_id = ?", userID)

	if f.Completed != nil {
		q = q.Where("completed = ?", *f.Completed)
	}
	if f.Tag != "" {
		q = q.Where("? = any(tags)", strings.ToLower(f.Tag))
	}
	if f.Query != "" {
		pat := "%" + f.Query + "%"
		q = q.Where("(title ILIKE ? OR description ILIKE ?)", pat, pat)
	}

	var rows []Task
	err := q.Order("updated_at desc").Limit(100).Find(&rows).Error
	return rows, err
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (Task, error) {
	var t Task
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in UpdateInput) (Task, error) {
	var t Task
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, userID).
			First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if in.Title != nil {
			t.Title = *in.Title
		}
		if in.Description != nil {
			if *in.Description == "" {
				t.Description = nil
			} else {
				t.Description = in.Description
			}
		}
		if in.Completed != nil {
			t.Completed = *in.Completed
		}

		dueChanged := false
		switch {
		case in.ClearDueAt:
			t.DueAt = nil
			dueChanged = true
		case in.DueAt != nil:
			t.DueAt = in.DueAt
			dueChanged = true
		}

		t.Tags = pq.StringArray(tagsFor(t.Title, t.Description))
		t.UpdatedAt = time.Now()

		if err := tx.Save(&t).Error; err != nil {
			return err
		}

		plan := planReminder(dueChanged, t.Completed, t.DueAt)
		if plan.cancel {
			if err := s.Reminders.Cancel(tx, userID, id); err != nil {
				return err
			}
		}
		if plan.enqueueAt != nil {
			return s.Reminders.Enqueue(tx, userID, id, *plan.enqueueAt)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return s.Reminders.Cancel(tx, userID, id)
	})
}

func (s *Service) TagCounts(ctx context.Context, userID uint64, prefix string, limit int) ([]TagCount, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	out := make([]TagCount, 0, limit)
	err := s.DB.WithContext(ctx).Raw(`
select tag, count(*) as count
from (
	select unnest(tags) as tag
	from tasks
	where user_id = ? and completed = false
) t
where (? = '' or tag like ? || '%')
group by tag
order by count desc, tag asc
limit ?
`, userID, prefix, prefix, limit).Scan(&out).Error
	return out, err
}

// reminderPlan says what a write does to the task's pending reminder.
type reminderPlan struct {
	cancel    bool
	enqueueAt *time.Time
}

// planReminder: any due-date change or completion drops the pending job;
// a new due date on an open task schedules its replacement.
func planReminder(dueChanged, completed bool, dueAt *time.Time) reminderPlan {
	var p reminderPlan
	if dueChanged || completed {
		p.cancel = true
	}
	if dueChanged && dueAt != nil && !completed {
		p.enqueueAt = dueAt
	}
	return p
}

func tagsFor(title string, description *string) []string {
	if description != nil {
		return ExtractTags(title, *description)
	}
	return ExtractTags(title)
}
