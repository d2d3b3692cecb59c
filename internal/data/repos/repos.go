package repos

import (
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos/achievement"
	"github.com/teamonboard/flowline-backend/internal/data/repos/assignment"
	"github.com/teamonboard/flowline-backend/internal/data/repos/flow"
	"github.com/teamonboard/flowline-backend/internal/data/repos/notification"
	"github.com/teamonboard/flowline-backend/internal/data/repos/user"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

type UserRepo = user.UserRepo
type UserTokenRepo = user.UserTokenRepo

type FlowRepo = flow.FlowRepo
type FlowContentRepo = flow.FlowContentRepo
type FlowStepRepo = flow.FlowStepRepo
type ComponentRepo = flow.ComponentRepo
type FlowVersionRepo = flow.FlowVersionRepo
type FlowSnapshotRepo = flow.FlowSnapshotRepo

type AssignmentRepo = assignment.AssignmentRepo
type ProgressRepo = assignment.ProgressRepo

type NotificationRepo = notification.NotificationRepo
type AchievementRepo = achievement.AchievementRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo           { return user.NewUserRepo(db, log) }
func NewUserTokenRepo(db *gorm.DB, log *logger.Logger) UserTokenRepo { return user.NewUserTokenRepo(db, log) }

func NewFlowRepo(db *gorm.DB, log *logger.Logger) FlowRepo { return flow.NewFlowRepo(db, log) }
func NewFlowContentRepo(db *gorm.DB, log *logger.Logger) FlowContentRepo {
	return flow.NewFlowContentRepo(db, log)
}
func NewFlowStepRepo(db *gorm.DB, log *logger.Logger) FlowStepRepo { return flow.NewFlowStepRepo(db, log) }
func NewComponentRepo(db *gorm.DB, log *logger.Logger) ComponentRepo {
	return flow.NewComponentRepo(db, log)
}
func NewFlowVersionRepo(db *gorm.DB, log *logger.Logger) FlowVersionRepo {
	return flow.NewFlowVersionRepo(db, log)
}
func NewFlowSnapshotRepo(db *gorm.DB, log *logger.Logger) FlowSnapshotRepo {
	return flow.NewFlowSnapshotRepo(db, log)
}

func NewAssignmentRepo(db *gorm.DB, log *logger.Logger) AssignmentRepo {
	return assignment.NewAssignmentRepo(db, log)
}
func NewProgressRepo(db *gorm.DB, log *logger.Logger) ProgressRepo {
	return assignment.NewProgressRepo(db, log)
}

func NewNotificationRepo(db *gorm.DB, log *logger.Logger) NotificationRepo {
	return notification.NewNotificationRepo(db, log)
}
func NewAchievementRepo(db *gorm.DB, log *logger.Logger) AchievementRepo {
	return achievement.NewAchievementRepo(db, log)
}
