package model

// ProcessingStatus 作业处理状态机的状态值，直接透传给前端
type ProcessingStatus string

const (
	StatusPending           ProcessingStatus = "pending"
	StatusExtracting        ProcessingStatus = "extracting"
	StatusGeneratingAnswers ProcessingStatus = "generating_answers"
	StatusReady             ProcessingStatus = "ready"
	StatusError             ProcessingStatus = "error"
)

// Active 返回该状态是否表示有处理任务正在进行（作为互斥标志）
func (s ProcessingStatus) Active() bool {
	return s == StatusExtracting || s == StatusGeneratingAnswers
}

// 文件在作业中的角色
const (
	FileRoleSource = "source" // 题目原文档
	FileRoleNotes  = "notes"  // 课堂笔记，用于答案溯源
)

// Assignment 教师上传的作业，处理后持有一组 Question
// swagger:model Assignment
type Assignment struct {
	UUIDBase
	ClassID          string           `gorm:"size:36;index" json:"classId"`
	Title            string           `gorm:"size:255" json:"title"`
	ProcessingStatus ProcessingStatus `gorm:"size:32;default:'pending';index" json:"processingStatus"`
	ProcessingError  string           `gorm:"type:text" json:"processingError,omitempty"`
	Files            []AssignmentFile `gorm:"foreignKey:AssignmentID" json:"files"`
	Questions        []Question       `gorm:"foreignKey:AssignmentID" json:"questions,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// AssignmentFile 已上传文件的引用，ObjectKey 可被存储层解析为字节流
type AssignmentFile struct {
	BaseModel
	AssignmentID string `gorm:"size:36;index;not null" json:"assignmentId"`
	Name         string `gorm:"size:255" json:"name"`
	ObjectKey    string `gorm:"size:512;not null" json:"objectKey"`
	ContentType  string `gorm:"size:100" json:"contentType"`
	Role         string `gorm:"type:enum('source','notes');default:'source'" json:"role"`
}

func (AssignmentFile) TableName() string {
	return "assignment_files"
}
