package repository

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"context"
	"errors"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ReplaceForAssignment 重新抽取时原子替换整套题目，保证重复抽取幂等
func (r *QuestionRepository) ReplaceForAssignment(ctx context.Context, assignmentID string, questions []model.Question) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("assignment_id = ?", assignmentID).
			Delete(&model.Question{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
}

// ListPending 按文档顺序返回待生成答案的题目
func (r *QuestionRepository) ListPending(ctx context.Context, assignmentID string) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.WithContext(ctx).
		Where("assignment_id = ? AND status = ?", assignmentID, model.QuestionPending).
		Order("extraction_order ASC").
		Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) SetStatus(ctx context.Context, id string, status model.QuestionStatus) error {
	return r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// CountByStatus 按状态统计一个作业的题目数量
func (r *QuestionRepository) CountByStatus(ctx context.Context, assignmentID string) (map[model.QuestionStatus]int64, error) {
	var rows []struct {
		Status model.QuestionStatus
		Count  int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Question{}).
		Select("status, COUNT(*) AS count").
		Where("assignment_id = ?", assignmentID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.QuestionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SaveAnswer 逐字段写入生成结果并置为 ready
func (r *QuestionRepository) SaveAnswer(ctx context.Context, id string, answer model.AnswerValue, keyPoints []string, source model.SourceValue) error {
	return r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"answer":     answer,
			"key_points": model.StringList(keyPoints),
			"source":     source,
			"status":     model.QuestionReady,
		}).Error
}
