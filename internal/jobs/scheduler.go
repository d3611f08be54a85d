package jobs

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Scheduler maintains due-reminder jobs. It operates on the transaction
// it is handed, never its own connection.
type Scheduler struct{}

func (Scheduler) Enqueue(tx *gorm.DB, userID, taskID uint64, runAt time.Time) error {
	payload, _ := json.Marshal(map[string]any{"task_id": taskID})
	j := Job{
		UserID:  userID,
		Type:    TypeDueReminder,
		Payload: payload,
		RunAt:   runAt,
		Status:  StatusPending,
	}
	return tx.Create(&j).Error
}

func (Scheduler) Cancel(tx *gorm.DB, userID, taskID uint64) error {
	return tx.Exec(`
delete from jobs
where user_id = ?
  and type = ?
  and status = ?
  and (payload->>'task_id')::bigint = ?
`, userID, TypeDueReminder, StatusPending, taskID).Error
}
