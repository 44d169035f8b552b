package repository

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"classtutor_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// studentTimesWindow 限流回看窗口；缓存生存期略长于窗口
const (
	studentTimesWindow = 24 * time.Hour
	studentTimesTTL    = studentTimesWindow + time.Hour
)

// studentTimesTrimMax ZREMRANGEBYSCORE 的上界分数：窗口外的成员一律清除。
// 活跃会话每次写入都会刷新 TTL，不修剪的话 ZSET 会无限增长。
func studentTimesTrimMax(now time.Time) string {
	return strconv.FormatInt(now.Add(-studentTimesWindow).UnixMilli(), 10)
}

type ChatRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewChatRepository(db *gorm.DB, rdb *redis.Client) *ChatRepository {
	return &ChatRepository{DB: db, Redis: rdb}
}

func (r *ChatRepository) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	var s model.ChatSession
	err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ChatRepository) CreateSession(ctx context.Context, session *model.ChatSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

// CreateMessage 写入消息；学生消息同步进入 Redis 时间戳缓存供限流读取
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	if err := r.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}

	if msg.Role == model.RoleStudent && r.Redis != nil {
		key := studentTimesKey(msg.SessionID)
		pipe := r.Redis.Pipeline()
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(msg.CreatedAt.UnixMilli()),
			Member: msg.ID,
		})
		pipe.ZRemRangeByScore(ctx, key, "-inf", studentTimesTrimMax(msg.CreatedAt))
		pipe.Expire(ctx, key, studentTimesTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			// 缓存失败不影响消息本身，限流会回源数据库
			logger.L().Warn("chat timestamp cache update failed",
				zap.String("session", msg.SessionID), zap.Error(err))
		}
	}
	return nil
}

// RecentMessages 倒序取最近 limit 条消息后翻转，作为辅导对话上下文
func (r *ChatRepository) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// StudentMessageTimes 返回会话中 since 之后学生消息的时间戳，一次取全。
// 优先读 Redis ZSET，缓存未建立时回源数据库并回填。
func (r *ChatRepository) StudentMessageTimes(ctx context.Context, sessionID string, since time.Time) ([]time.Time, error) {
	if r.Redis != nil {
		times, ok, err := r.timesFromCache(ctx, sessionID, since)
		if err != nil {
			logger.L().Warn("chat timestamp cache read failed",
				zap.String("session", sessionID), zap.Error(err))
		} else if ok {
			return times, nil
		}
	}

	var msgs []model.ChatMessage
	err := r.DB.WithContext(ctx).
		Select("id", "created_at").
		Where("session_id = ? AND role = ? AND created_at > ?", sessionID, model.RoleStudent, since).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, len(msgs))
	for _, m := range msgs {
		times = append(times, m.CreatedAt)
	}

	if r.Redis != nil {
		r.backfillCache(ctx, sessionID, msgs)
	}
	return times, nil
}

func (r *ChatRepository) timesFromCache(ctx context.Context, sessionID string, since time.Time) ([]time.Time, bool, error) {
	key := studentTimesKey(sessionID)
	exists, err := r.Redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}

	zs, err := r.Redis.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli()+1, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, false, err
	}

	times := make([]time.Time, 0, len(zs))
	for _, z := range zs {
		times = append(times, time.UnixMilli(int64(z.Score)))
	}
	return times, true, nil
}

func (r *ChatRepository) backfillCache(ctx context.Context, sessionID string, msgs []model.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	key := studentTimesKey(sessionID)
	members := make([]*redis.Z, 0, len(msgs))
	for _, m := range msgs {
		members = append(members, &redis.Z{
			Score:  float64(m.CreatedAt.UnixMilli()),
			Member: m.ID,
		})
	}
	pipe := r.Redis.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, studentTimesTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.L().Warn("chat timestamp cache backfill failed",
			zap.String("session", sessionID), zap.Error(err))
	}
}

func studentTimesKey(sessionID string) string {
	return fmt.Sprintf("chat:student_times:%s", sessionID)
}
