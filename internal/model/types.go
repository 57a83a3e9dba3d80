package model

// SessionEntry 会话日志中的一道题，字段与前端回传的日志保持一致
type SessionEntry struct {
	QuestionNum   *int                `json:"question_num"`
	QuestionText  string              `json:"question_text,omitempty"`
	Options       map[string]string   `json:"options,omitempty"`
	CorrectAnswer string              `json:"correct_answer,omitempty"`
	Explanation   string              `json:"explanation,omitempty"`
	Difficulty    *int                `json:"difficulty"`
	UserAnswer    *string             `json:"user_answer"`
	IsCorrect     *bool               `json:"is_correct"`
	TimeTaken     *float64            `json:"time_taken"`
	Feature3D     *PerformanceFeature `json:"feature_3d"`
}

type PerformanceFeature struct {
	Difficulty      int    `json:"difficulty"`
	Correctness     int    `json:"correctness"`
	PerformanceCode string `json:"performance_code"`
}

type SessionLog struct {
	Topic           string         `json:"topic"`
	SessionLog      []SessionEntry `json:"session_log"`
	QuantumAnalysis *MasteryResult `json:"quantum_analysis"`
}

type MasteryResult struct {
	Score    float64  `json:"score"`
	Feedback Feedback `json:"feedback"`
}

type Feedback struct {
	Level      string `json:"level"`
	Comment    string `json:"comment"`
	Suggestion string `json:"suggestion"`
}

// QuestionPackage 内容生成服务返回的题目包
type QuestionPackage struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
	Difficulty    *int              `json:"difficulty"`
}

type QuestionView struct {
	SessionID    string            `json:"session_id"`
	QuestionNum  int               `json:"question_num"`
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options"`
}

type DifyChatRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	User           string            `json:"user"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID *string           `json:"conversation_id"`
}

type DifyChatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

type Machine struct {
	Name   string  `json:"name"`
	Qubits int     `json:"qubits"`
	Status string  `json:"status"`
	Price  float64 `json:"price"`
}

type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
