package util

import "errors"

var (
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrSessionNotFound      = errors.New("chat session not found")
	ErrProcessingInProgress = errors.New("processing already in progress")
	ErrNoSourceFiles        = errors.New("assignment has no source files")
	ErrUnmappableAnswer     = errors.New("MCQ answer cannot be mapped to an option letter")
	ErrNoJSONValue          = errors.New("no JSON value found in model output")
	ErrEmptyCompletion      = errors.New("model returned an empty completion")
	ErrNotStopped           = errors.New("assignment is not in a stopped state")
)

// StopRequestedMessage 用户主动停止时写入 processingError 的哨兵文案。
// 编排器据此区分"可恢复的停止"与真正的流水线错误。
const StopRequestedMessage = "processing stopped by user"
