package controller

import (
	"classtutor_backend/internal/service"
	"classtutor_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	ChatService *service.ChatService
}

func NewChatController(chatService *service.ChatService) *ChatController {
	return &ChatController{ChatService: chatService}
}

type sendMessageRequest struct {
	QuestionID string `json:"questionId"`
	StudentID  string `json:"studentId"`
	Content    string `json:"content" binding:"required"`
}

// @Summary 发送辅导消息
// @Description 学生向辅导会话发送一条消息并获得模型回复，触发滑动窗口限流时返回 429
// @Tags 辅导聊天
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body sendMessageRequest true "消息内容"
// @Success 200 {object} util.Response
// @Failure 429 {object} util.Response
// @Router /api/chat/sessions/{id}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	var req sendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "content is required")
		return
	}

	result, err := c.ChatService.SendMessage(ctx.Request.Context(), service.SendMessageInput{
		SessionID:  ctx.Param("id"),
		QuestionID: req.QuestionID,
		StudentID:  req.StudentID,
		Content:    req.Content,
	})
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) || errors.Is(err, util.ErrQuestionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	if result.Limited != nil {
		util.TooManyRequests(ctx, result)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查询会话限流状态
// @Description 返回会话当前是否被限流以及各窗口的恢复时间，不产生副作用
// @Tags 辅导聊天
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/chat/sessions/{id}/limit [get]
func (c *ChatController) LimitStatus(ctx *gin.Context) {
	result, err := c.ChatService.LimitStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"limited": result})
}

// @Summary 获取会话历史
// @Description 按时间正序返回会话最近的消息
// @Tags 辅导聊天
// @Produce json
// @Param id path string true "会话ID"
// @Param limit query int false "返回条数上限"
// @Success 200 {object} util.Response
// @Router /api/chat/sessions/{id}/messages [get]
func (c *ChatController) History(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))

	msgs, err := c.ChatService.History(ctx.Request.Context(), ctx.Param("id"), limit)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, msgs)
}
