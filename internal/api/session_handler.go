package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"Q-ITS-Mastery-Backend/internal/model"
	"Q-ITS-Mastery-Backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const SessionHeader = "X-Session-ID"

type GenerateQuestionRequest struct {
	Topic           string `json:"topic"`
	IsStrengthening bool   `json:"is_strengthening"`
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

type MachineLister interface {
	ListMachines(ctx context.Context) ([]model.Machine, error)
}

type SessionHandler struct {
	sessions *service.SessionService
	machines MachineLister
	logger   *zap.Logger
}

func NewSessionHandler(sessions *service.SessionService, machines MachineLister, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sessions: sessions, machines: machines, logger: logger}
}

func (h *SessionHandler) handleError(c *gin.Context, err error, contextMsg string) {
	status := http.StatusInternalServerError
	msg := contextMsg
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		status, msg = http.StatusBadRequest, "会话已过期，请刷新页面重试"
	case errors.Is(err, service.ErrNoPendingQuestion):
		status, msg = http.StatusConflict, "当前没有待作答的题目"
	case errors.Is(err, service.ErrMissingTopic):
		status, msg = http.StatusBadRequest, "请提供测试主题 topic"
	case errors.Is(err, service.ErrEmptyAnalysisInput):
		status, msg = http.StatusBadRequest, "未提供用于分析的数据"
	case errors.Is(err, model.ErrMalformedRecord):
		status, msg = http.StatusBadRequest, "作答日志格式不正确"
	case errors.Is(err, service.ErrQuestionUnavailable):
		msg = "从 Dify 服务获取数据失败, 请检查后端日志"
	case errors.Is(err, service.ErrMalformedQuestion):
		msg = "解析 Dify 返回的数据失败，可能格式不正确"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(contextMsg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}

func (h *SessionHandler) GenerateQuestionHandler(c *gin.Context) {
	var req GenerateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}

	view, err := h.sessions.GenerateQuestion(c.Request.Context(), c.GetHeader(SessionHeader), req.Topic, req.IsStrengthening)
	if err != nil {
		h.handleError(c, err, "生成题目失败")
		return
	}
	c.Header(SessionHeader, view.SessionID)
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) SubmitAnswerHandler(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}
	if _, err := h.sessions.SubmitAnswer(c.GetHeader(SessionHeader), req.Answer); err != nil {
		h.handleError(c, err, "提交答案失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) EndSessionHandler(c *gin.Context) {
	entries, err := h.sessions.EndSession(c.GetHeader(SessionHeader))
	if err != nil {
		h.handleError(c, err, "结束会话失败")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// QuantumAnalysisHandler 请求体为前端回传的作答日志数组，也可以是完整的会话日志对象
func (h *SessionHandler) QuantumAnalysisHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败: " + err.Error()})
		return
	}
	entries, err := model.ParseSessionEntries(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}

	result, err := h.sessions.Analyze(c.Request.Context(), c.GetHeader(SessionHeader), entries)
	if err != nil {
		h.handleError(c, err, "量子分析失败")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) MachinesHandler(c *gin.Context) {
	if h.machines == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置量子计算平台"})
		return
	}
	machines, err := h.machines.ListMachines(c.Request.Context())
	if err != nil {
		h.logger.Error("获取量子计算机列表失败", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "获取量子计算机列表失败", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, machines)
}
