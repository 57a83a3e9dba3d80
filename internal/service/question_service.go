package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"Q-ITS-Mastery-Backend/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/parnurzeal/gorequest"
	"go.uber.org/zap"
)

var (
	ErrQuestionUnavailable = errors.New("question generator unavailable")
	ErrMalformedQuestion   = errors.New("malformed question package")
)

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	htmlTagPattern    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// QuestionService 通过 Dify 对话接口按主题生成单项选择题
type QuestionService struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
	logger  *zap.Logger
}

func NewQuestionService(apiURL, apiKey string, timeoutSec int, logger *zap.Logger) *QuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{
		APIURL:  apiURL,
		APIKey:  apiKey,
		Timeout: time.Duration(timeoutSec) * time.Second,
		logger:  logger,
	}
}

// GenerateQuestion 返回题目包和 Dify 的会话 ID，后者用于下一次出题时延续上下文。
func (s *QuestionService) GenerateQuestion(ctx context.Context, topic, userID, conversationID string) (*model.QuestionPackage, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	payload := model.DifyChatRequest{
		Inputs:       map[string]string{"topic": topic},
		Query:        fmt.Sprintf("请围绕 %s 这个主题，生成一道相关的单项选择题。", topic),
		User:         userID,
		ResponseMode: "blocking",
	}
	if conversationID != "" {
		payload.ConversationID = &conversationID
	}
	s.logger.Info("准备向 Dify 发送请求", zap.String("topic", topic), zap.String("conversation_id", conversationID))

	var chat model.DifyChatResponse
	resp, body, errs := gorequest.New().
		Post(s.APIURL).
		Set("Authorization", "Bearer "+s.APIKey).
		Timeout(s.Timeout).
		Send(payload).
		EndStruct(&chat)

	if resp == nil {
		s.logger.Error("Dify API 调用失败", zap.Errors("errors", errs))
		return nil, "", fmt.Errorf("%w: %v", ErrQuestionUnavailable, errs)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Dify API 返回非200状态", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, "", fmt.Errorf("%w: 状态码 %d", ErrQuestionUnavailable, resp.StatusCode)
	}
	if len(errs) > 0 {
		s.logger.Error("解析 Dify 响应失败", zap.Errors("errors", errs), zap.ByteString("body", body))
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedQuestion, errs)
	}

	pkg, err := ParseQuestionPackage(chat.Answer)
	if err != nil {
		s.logger.Error("解析 Dify 返回的数据失败", zap.Error(err), zap.String("answer", chat.Answer))
		return nil, chat.ConversationID, err
	}
	return pkg, chat.ConversationID, nil
}

// ParseQuestionPackage 从模型回答中取出第一个 {...} 片段作为题目 JSON，要求包含难度。
func ParseQuestionPackage(raw string) (*model.QuestionPackage, error) {
	block := jsonObjectPattern.FindString(raw)
	if block == "" {
		return nil, fmt.Errorf("%w: 回答中没有 JSON 对象", ErrMalformedQuestion)
	}

	var pkg model.QuestionPackage
	if err := json.Unmarshal([]byte(block), &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuestion, err)
	}
	if pkg.Difficulty == nil {
		return nil, fmt.Errorf("%w: 缺少 difficulty 字段", ErrMalformedQuestion)
	}

	pkg.Question = plainText(pkg.Question)
	pkg.Explanation = plainText(pkg.Explanation)
	for k, v := range pkg.Options {
		pkg.Options[k] = plainText(v)
	}
	return &pkg, nil
}

// plainText 去掉模型偶尔夹带的 HTML 标签，普通文本原样返回
func plainText(s string) string {
	if !htmlTagPattern.MatchString(s) {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
