package controller

import (
	"classtutor_backend/internal/service"
	"classtutor_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	PipelineService   *service.PipelineService
	AssignmentService *service.AssignmentService
}

func NewAssignmentController(pipelineService *service.PipelineService, assignmentService *service.AssignmentService) *AssignmentController {
	return &AssignmentController{
		PipelineService:   pipelineService,
		AssignmentService: assignmentService,
	}
}

// @Summary 启动作业处理
// @Description 抽取作业题目并批量生成参考答案，同一作业同时只允许一个处理任务
// @Tags 作业处理
// @Accept json
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/assignments/{id}/process [post]
func (c *AssignmentController) Process(ctx *gin.Context) {
	id := ctx.Param("id")

	result := c.PipelineService.Process(ctx.Request.Context(), id)
	if result.Error == util.ErrProcessingInProgress.Error() {
		util.Conflict(ctx, result.Error)
		return
	}
	if result.Error == util.ErrAssignmentNotFound.Error() {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, result)
}

// @Summary 停止作业处理
// @Description 请求停止进行中的处理任务，已在飞的批次完成后退出
// @Tags 作业处理
// @Accept json
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/assignments/{id}/stop [post]
func (c *AssignmentController) Stop(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.PipelineService.Stop(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, util.ErrAssignmentNotFound) {
			util.NotFound(ctx)
			return
		}
		util.Conflict(ctx, err.Error())
		return
	}
	util.Success(ctx, gin.H{"stopping": true})
}

// @Summary 恢复出错的作业
// @Description 清除作业的错误状态回到待处理，之后可重新启动处理
// @Tags 作业处理
// @Accept json
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/assignments/{id}/resume [post]
func (c *AssignmentController) Resume(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.PipelineService.Resume(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, util.ErrAssignmentNotFound) {
			util.NotFound(ctx)
			return
		}
		if errors.Is(err, util.ErrNotStopped) {
			util.Conflict(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"resumed": true})
}

// @Summary 查询作业处理状态
// @Description 返回作业当前处理状态、错误信息与题目进度
// @Tags 作业处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/status [get]
func (c *AssignmentController) Status(ctx *gin.Context) {
	id := ctx.Param("id")

	status, err := c.AssignmentService.Status(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, util.ErrAssignmentNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

type regenerateRequest struct {
	Feedback string `json:"feedback"`
}

// @Summary 重新生成单题答案
// @Description 对指定题目重新生成参考答案，可附带教师反馈作为修正指引
// @Tags 作业处理
// @Accept json
// @Produce json
// @Param id path string true "题目ID"
// @Param request body regenerateRequest false "教师反馈"
// @Success 200 {object} util.Response
// @Router /api/questions/{id}/regenerate [post]
func (c *AssignmentController) Regenerate(ctx *gin.Context) {
	id := ctx.Param("id")

	var req regenerateRequest
	// 请求体可以为空，解析失败按无反馈处理
	_ = ctx.ShouldBindJSON(&req)

	result := c.PipelineService.Regenerate(ctx.Request.Context(), id, req.Feedback)
	if result.Error == util.ErrQuestionNotFound.Error() {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, result)
}
