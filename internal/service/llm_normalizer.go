package service

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// 形如 "B"、"B)"、"b."、"C: ..." 的行首单字母
	leadingLetterRe = regexp.MustCompile(`^([A-Za-z])(?:[).:\s]|$)`)
	// 答案文本中作为独立单词出现的单字母
	isolatedLetterRe = regexp.MustCompile(`\b([A-Za-z])\b`)
)

// NormalizeMCQAnswer 把模型给出的选择题答案解析为唯一的选项字母。
// 依次尝试：行首单字母 → 与选项全文精确匹配（忽略大小写）→ 选项文本
// 作为答案子串 → 独立单词形式的字母。都失败就报错，绝不默认猜一个。
func NormalizeMCQAnswer(raw interface{}, options []string) (string, error) {
	answer := strings.TrimSpace(FlattenValue(raw))
	if answer == "" || len(options) == 0 {
		return "", fmt.Errorf("%w: answer %q with %d options", util.ErrUnmappableAnswer, answer, len(options))
	}

	if m := leadingLetterRe.FindStringSubmatch(answer); m != nil {
		if letter, ok := letterInRange(m[1], len(options)); ok {
			return letter, nil
		}
	}

	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), answer) {
			return optionLetter(i), nil
		}
	}

	lowerAnswer := strings.ToLower(answer)
	for i, opt := range options {
		trimmed := strings.ToLower(strings.TrimSpace(opt))
		if trimmed != "" && strings.Contains(lowerAnswer, trimmed) {
			return optionLetter(i), nil
		}
	}

	for _, m := range isolatedLetterRe.FindAllStringSubmatch(answer, -1) {
		if letter, ok := letterInRange(m[1], len(options)); ok {
			return letter, nil
		}
	}

	return "", fmt.Errorf("%w: %q", util.ErrUnmappableAnswer, answer)
}

// NormalizeAnswer 把非选择题答案收敛成标签联合：结构化输出（数组/对象）
// 逐项展平为显示字符串，free_response 保留列表形状，其余合并为单串。
func NormalizeAnswer(raw interface{}, questionType model.QuestionType) model.AnswerValue {
	switch v := raw.(type) {
	case nil:
		return model.ScalarAnswer("")
	case string:
		return model.ScalarAnswer(strings.TrimSpace(v))
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(FlattenValue(item)); s != "" {
				values = append(values, s)
			}
		}
		if questionType == model.TypeFreeResponse {
			return model.ListAnswer(values)
		}
		return model.ScalarAnswer(strings.Join(values, ", "))
	case map[string]interface{}:
		values := flattenObject(v)
		if questionType == model.TypeFreeResponse {
			return model.ListAnswer(values)
		}
		return model.ScalarAnswer(strings.Join(values, "; "))
	default:
		return model.ScalarAnswer(FlattenValue(raw))
	}
}

// FlattenValue 把任意 JSON 值压成一行展示字符串
func FlattenValue(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, FlattenValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		return strings.Join(flattenObject(v), "; ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// flattenObject 按键排序保证展平结果稳定
func flattenObject(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, fmt.Sprintf("%s: %s", k, FlattenValue(obj[k])))
	}
	return values
}

func optionLetter(index int) string {
	return string(rune('A' + index))
}

func letterInRange(letter string, optionCount int) (string, bool) {
	upper := strings.ToUpper(letter)
	idx := int(upper[0] - 'A')
	if idx < 0 || idx >= optionCount {
		return "", false
	}
	return upper, true
}

// 联网检索代理域名，它们的跳转链接对用户无意义，直接丢弃
var groundingProxyHosts = []string{
	"vertexaisearch.cloud.google.com",
	"grounding-api-redirect.googleapis.com",
}

// NormalizeSource 规范化答案来源：字面值 "notes" 原样保留；URL 逐个
// 清洗（解包搜索引擎跳转、丢弃检索代理域名、去掉锚点）并去重；
// 清洗后为空则回退到检索层给的 grounding URL，再为空回退 "notes"。
func NormalizeSource(raw interface{}, groundingURLs []string) model.SourceValue {
	candidates := sourceCandidates(raw)

	if len(candidates) == 1 && strings.EqualFold(strings.TrimSpace(candidates[0]), model.SourceNotes) {
		return model.NotesSource()
	}

	cleaned := CleanURLs(candidates)
	if len(cleaned) > 0 {
		return model.URLSource(cleaned)
	}

	if fallback := CleanURLs(groundingURLs); len(fallback) > 0 {
		return model.URLSource(fallback)
	}

	return model.NotesSource()
}

func sourceCandidates(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CleanURLs 清洗并去重一组 URL，保持原有顺序
func CleanURLs(rawURLs []string) []string {
	seen := make(map[string]bool, len(rawURLs))
	out := make([]string, 0, len(rawURLs))
	for _, raw := range rawURLs {
		cleaned, ok := cleanURL(raw)
		if !ok || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
	}
	return out
}

func cleanURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	// 搜索引擎跳转包装：真实地址在查询参数里
	if isRedirectWrapper(u) {
		for _, key := range []string{"q", "url", "u"} {
			if target := u.Query().Get(key); target != "" {
				inner, err := url.Parse(target)
				if err == nil && (inner.Scheme == "http" || inner.Scheme == "https") {
					u = inner
					break
				}
			}
		}
	}

	host := strings.ToLower(u.Hostname())
	for _, proxy := range groundingProxyHosts {
		if host == proxy || strings.HasSuffix(host, "."+proxy) {
			return "", false
		}
	}

	u.Fragment = ""
	return u.String(), true
}

func isRedirectWrapper(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	path := u.Path
	switch {
	case strings.HasSuffix(host, "google.com") && (path == "/url" || strings.HasPrefix(path, "/url")):
		return true
	case strings.HasSuffix(host, "bing.com") && strings.HasPrefix(path, "/ck"):
		return true
	case strings.HasSuffix(host, "duckduckgo.com") && strings.HasPrefix(path, "/l/"):
		return true
	}
	return false
}
