package db

import (
	"fmt"

	"tasklist/internal/auth"
	"tasklist/internal/jobs"
	"tasklist/internal/task"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	// TranslateError maps unique violations to gorm.ErrDuplicatedKey,
	// which the credential store relies on.
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&task.Task{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_tasks_user_updated on tasks(user_id, updated_at desc);`,
		`create index if not exists idx_tasks_user_completed on tasks(user_id, completed);`,
		`create index if not exists idx_tasks_tags on tasks using gin (tags);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
