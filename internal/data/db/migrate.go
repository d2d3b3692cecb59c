package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/teamonboard/flowline-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(

		// Identity + auth
		&types.User{},
		&types.UserToken{},

		// Live flow editing surface
		&types.Flow{},
		&types.FlowContent{},
		&types.FlowStep{},
		&types.Component{},

		// Publication history
		&types.FlowVersion{},

		// Frozen snapshots consumed by assignments
		&types.FlowSnapshot{},
		&types.FlowStepSnapshot{},
		&types.ComponentSnapshot{},

		// Assignments + progress rollup
		&types.FlowAssignment{},
		&types.FlowProgress{},
		&types.StepProgress{},
		&types.ComponentProgress{},

		// Notifications + achievements
		&types.Notification{},
		&types.Achievement{},
		&types.UserAchievement{},
	); err != nil {
		return err
	}
	return createPartialIndexes(db)
}

// createPartialIndexes adds the constraints AutoMigrate cannot express. The
// filtered unique index on flow_version is the storage-level backstop for the
// at-most-one-active-version invariant under concurrent publishes.
func createPartialIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_version_active
		   ON flow_version (original_id) WHERE is_active`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_step_progress_node
		   ON step_progress (flow_progress_id, step_snapshot_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_component_progress_node
		   ON component_progress (step_progress_id, component_snapshot_id)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
