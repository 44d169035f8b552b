package service

import (
	"classtutor_backend/internal/util"
	"classtutor_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// 模型输出"理应"是 JSON，但经常裹着代码围栏、拖着散文尾巴、
// 或者多出一个尾逗号。这里负责从中抠出最小的合法 JSON 值。

// ExtractJSON 从自由文本中提取第一个配平的 JSON 值：
// 去掉代码围栏标记，定位首个 '[' 或 '{'，逐字符扫描（追踪字符串与
// 转义状态）直到嵌套深度归零，在该处截断，最后清掉尾逗号。
func ExtractJSON(raw string) (string, error) {
	text := stripCodeFences(raw)

	start := -1
	for i, c := range text {
		if c == '[' || c == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", util.ErrNoJSONValue
	}

	depth := 0
	inString := false
	escaped := false
	end := len(text)

scan:
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				end = i + 1
				break scan
			}
		}
	}

	return stripTrailingCommas(text[start:end]), nil
}

// ParseModelOutput 提取并解析 JSON；解析失败记录清洗后的文本并上抛，
// 由调用方的重试循环处理，这里不掩盖问题。
func ParseModelOutput(raw string, v interface{}) error {
	cleaned, err := ExtractJSON(raw)
	if err != nil {
		logger.L().Error("model output contains no JSON value", zap.String("raw", raw))
		return err
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		logger.L().Error("model output failed to parse", zap.String("cleaned", cleaned), zap.Error(err))
		return fmt.Errorf("parse model output: %w", err)
	}
	return nil
}

func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// stripTrailingCommas 删除 '}' 或 ']' 前的逗号，扫描时跳过字符串内部
func stripTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == ',':
			// 向后看第一个非空白字符
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue // 丢弃尾逗号
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
