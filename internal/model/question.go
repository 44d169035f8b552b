package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType 题目类型
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeSingleValue    QuestionType = "single_value"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeFreeResponse   QuestionType = "free_response"
	TypeSkipped        QuestionType = "skipped"
)

// QuestionStatus 题目状态
type QuestionStatus string

const (
	QuestionPending    QuestionStatus = "pending"
	QuestionProcessing QuestionStatus = "processing"
	QuestionReady      QuestionStatus = "ready"
	QuestionApproved   QuestionStatus = "approved"
)

// SourceNotes 答案来源为课堂笔记时的字面值
const SourceNotes = "notes"

// StringList 以 JSON 数组形式落库的字符串列表
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported StringList column type %T", src)
	}
}

// AnswerValue 答案的标签联合：标量字符串或字符串列表。
// 模型输出的动态形状在解析层就收敛到这里，不再外泄。
type AnswerValue struct {
	Text   string
	Values []string
	IsList bool
}

// ScalarAnswer 构造标量答案
func ScalarAnswer(text string) AnswerValue {
	return AnswerValue{Text: text}
}

// ListAnswer 构造列表答案
func ListAnswer(values []string) AnswerValue {
	return AnswerValue{Values: values, IsList: true}
}

// Empty 返回答案是否为空
func (a AnswerValue) Empty() bool {
	if a.IsList {
		return len(a.Values) == 0
	}
	return a.Text == ""
}

// Display 单行展示形式，列表用 "; " 连接
func (a AnswerValue) Display() string {
	if a.IsList {
		return strings.Join(a.Values, "; ")
	}
	return a.Text
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.IsList {
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Text)
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*a = ListAnswer(values)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*a = ScalarAnswer(text)
	return nil
}

func (a AnswerValue) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *AnswerValue) Scan(src interface{}) error {
	if src == nil {
		*a = AnswerValue{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return a.UnmarshalJSON(v)
	case string:
		return a.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported AnswerValue column type %T", src)
	}
}

// SourceValue 答案来源：字面值 "notes" 或一组引用 URL
type SourceValue struct {
	Notes bool
	URLs  []string
}

// NotesSource 来源为课堂笔记
func NotesSource() SourceValue {
	return SourceValue{Notes: true}
}

// URLSource 来源为一组 URL
func URLSource(urls []string) SourceValue {
	return SourceValue{URLs: urls}
}

func (s SourceValue) MarshalJSON() ([]byte, error) {
	if s.Notes || len(s.URLs) == 0 {
		return json.Marshal(SourceNotes)
	}
	return json.Marshal(s.URLs)
}

func (s *SourceValue) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err == nil {
		*s = URLSource(urls)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*s = NotesSource()
	return nil
}

func (s SourceValue) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SourceValue) Scan(src interface{}) error {
	if src == nil {
		*s = SourceValue{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported SourceValue column type %T", src)
	}
}

// Question 从作业文档抽取出的单个题目
// swagger:model Question
type Question struct {
	UUIDBase
	AssignmentID    string         `gorm:"size:36;index;not null" json:"assignmentId"`
	QuestionNumber  string         `gorm:"size:20" json:"questionNumber"` // 保留 "16a" 这类带字母的子题号
	ExtractionOrder int            `gorm:"index" json:"extractionOrder"`  // 保留文档内顺序
	QuestionType    QuestionType   `gorm:"size:32;not null" json:"questionType"`
	Content         string         `gorm:"type:text" json:"content"`
	AnswerOptions   StringList     `gorm:"type:json" json:"answerOptionsMCQ,omitempty"` // 仅选择题，保序
	Instructions    string         `gorm:"type:text" json:"instructions,omitempty"`
	Answer          AnswerValue    `gorm:"type:json" json:"answer"`
	KeyPoints       StringList     `gorm:"type:json" json:"keyPoints"`
	Source          SourceValue    `gorm:"type:json" json:"source"`
	Status          QuestionStatus `gorm:"size:20;default:'pending';index" json:"status"`
}

func (Question) TableName() string {
	return "questions"
}
