package repository

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"context"
	"errors"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.WithContext(ctx).Preload("Files").First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetProcessingState 只读状态与错误信息，调度器在每道题前后轮询它作为停止信号
func (r *AssignmentRepository) GetProcessingState(ctx context.Context, id string) (model.ProcessingStatus, string, error) {
	var a model.Assignment
	err := r.DB.WithContext(ctx).Select("processing_status", "processing_error").First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", util.ErrAssignmentNotFound
	}
	if err != nil {
		return "", "", err
	}
	return a.ProcessingStatus, a.ProcessingError, nil
}

// BeginProcessing 以条件 UPDATE 实现状态互斥：只有非活跃状态的作业才能
// 进入 extracting。返回 false 表示已有处理任务持有该作业。
func (r *AssignmentRepository) BeginProcessing(ctx context.Context, id string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND processing_status NOT IN ?", id,
			[]model.ProcessingStatus{model.StatusExtracting, model.StatusGeneratingAnswers}).
		Updates(map[string]interface{}{
			"processing_status": model.StatusExtracting,
			"processing_error":  "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// 要么作业不存在，要么已在处理中
		var count int64
		if err := r.DB.WithContext(ctx).Model(&model.Assignment{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, util.ErrAssignmentNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *AssignmentRepository) SetStatus(ctx context.Context, id string, status model.ProcessingStatus) error {
	return r.DB.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ?", id).
		Update("processing_status", status).Error
}

// SetError 进入 error 状态并记录可读错误信息（含用户停止的哨兵文案）
func (r *AssignmentRepository) SetError(ctx context.Context, id string, message string) error {
	return r.DB.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": model.StatusError,
			"processing_error":  message,
		}).Error
}

// ClearError 显式恢复：清除错误并回到 pending
func (r *AssignmentRepository) ClearError(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND processing_status = ?", id, model.StatusError).
		Updates(map[string]interface{}{
			"processing_status": model.StatusPending,
			"processing_error":  "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrNotStopped
	}
	return nil
}
