package service

import (
	"classtutor_backend/internal/config"
	"classtutor_backend/internal/util"
	"encoding/base64"
	"fmt"

	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Attachment 随提示词一同上送的二进制文件
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// ChatTurn 多轮对话中的一条历史消息
type ChatTurn struct {
	Role    string // model.RoleStudent / model.RoleTutor
	Content string
}

// InferenceRequest 一次推理调用的全部输入
type InferenceRequest struct {
	System      string
	Prompt      string
	History     []ChatTurn
	Attachments []Attachment
	JSONOutput  bool // 请求 JSON Object 输出格式
	UseSearch   bool // 走联网检索模型，返回 grounding URL
}

// InferenceResult 推理服务返回的自由文本与检索引用
type InferenceResult struct {
	Text          string
	GroundingURLs []string
}

// AIService 封装 OpenAI 兼容网关
type AIService struct {
	api *openai.Client
	cfg config.AIConfig
}

func NewAIService(cfg config.AIConfig) *AIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &AIService{
		api: openai.NewClientWithConfig(clientCfg),
		cfg: cfg,
	}
}

func (s *AIService) Complete(ctx context.Context, req InferenceRequest) (*InferenceResult, error) {
	messages := []openai.ChatCompletionMessage{}

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role != "student" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	// 带附件时使用多段内容，附件以 base64 data URL 内联
	if len(req.Attachments) > 0 {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
		}
		for _, att := range req.Attachments {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(att),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	useSearch := req.UseSearch && s.cfg.SearchModel != ""
	modelName := s.cfg.Model
	if useSearch {
		modelName = s.cfg.SearchModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: 0.2,
	}
	// 检索模型不接受 response_format，结构化约束只对普通模型生效，
	// 检索调用的 JSON 形状靠提示词约束加解析端兜底
	if req.JSONOutput && !useSearch {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("inference API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, util.ErrEmptyCompletion
	}

	msg := resp.Choices[0].Message
	result := &InferenceResult{Text: msg.Content}

	// 联网检索模型把引用放在 annotation 里，作为来源归因的兜底
	for _, ann := range msg.Annotations {
		if ann.URLCitation != nil && ann.URLCitation.URL != "" {
			result.GroundingURLs = append(result.GroundingURLs, ann.URLCitation.URL)
		}
	}

	return result, nil
}

func dataURL(att Attachment) string {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(att.Data))
}
