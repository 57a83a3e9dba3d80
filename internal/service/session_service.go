package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"Q-ITS-Mastery-Backend/internal/model"
	"Q-ITS-Mastery-Backend/internal/quantum"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoPendingQuestion  = errors.New("no pending question")
	ErrEmptyAnalysisInput = errors.New("no data provided for analysis")
	ErrMissingTopic       = errors.New("topic is required")
)

type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, topic, userID, conversationID string) (*model.QuestionPackage, string, error)
}

type MasteryEstimator interface {
	Evaluate(ctx context.Context, records []model.AnswerRecord) quantum.Estimate
}

type LogWriter interface {
	Write(name string, log *model.SessionLog) error
}

const DefaultIdleTimeout = 2 * time.Hour

type session struct {
	mu             sync.Mutex
	lastActive     atomic.Int64
	id             string
	logFile        string
	conversationID string
	startedAt      time.Time
	data           model.SessionLog
}

// SessionService 管理答题会话：出题、判分计时、结束和量子分析，每次变更都会落盘。
type SessionService struct {
	generator  QuestionGenerator
	estimator  MasteryEstimator
	logs       LogWriter
	thresholds quantum.Thresholds
	userID     string
	logger     *zap.Logger
	now        func() time.Time
	idleTTL    time.Duration

	mu        sync.RWMutex
	sessions  map[string]*session
	lastSweep time.Time
}

func NewSessionService(generator QuestionGenerator, estimator MasteryEstimator, logs LogWriter, thresholds quantum.Thresholds, userID string, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds == nil {
		thresholds = quantum.DefaultThresholds()
	}
	return &SessionService{
		generator:  generator,
		estimator:  estimator,
		logs:       logs,
		thresholds: thresholds,
		userID:     userID,
		logger:     logger,
		now:        time.Now,
		idleTTL:    DefaultIdleTimeout,
		sessions:   make(map[string]*session),
	}
}

// WithIdleTimeout 设置会话的最长空闲时间，超过后会话被回收
func (s *SessionService) WithIdleTimeout(d time.Duration) *SessionService {
	if d > 0 {
		s.idleTTL = d
	}
	return s
}

func (s *SessionService) touch(sess *session) {
	sess.lastActive.Store(s.now().UnixNano())
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(sess)
	return sess, nil
}

func (s *SessionService) open(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictIdle()
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{id: id}
		s.sessions[id] = sess
	}
	s.touch(sess)
	return sess
}

// evictIdle 回收空闲超时的会话，调用方需持有 s.mu 写锁；每分钟最多扫描一次
func (s *SessionService) evictIdle() {
	now := s.now()
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.lastSweep = now
	cutoff := now.Add(-s.idleTTL).UnixNano()
	for id, sess := range s.sessions {
		if sess.lastActive.Load() < cutoff {
			delete(s.sessions, id)
			s.logger.Debug("回收空闲会话", zap.String("session", id))
		}
	}
}

func (s *SessionService) persist(sess *session) error {
	if err := s.logs.Write(sess.logFile, &sess.data); err != nil {
		return fmt.Errorf("写入会话日志 %s 失败: %w", sess.logFile, err)
	}
	return nil
}

// reset 开始一个新主题的会话。日志文件以当前时间加随机后缀命名，同一秒内开始的会话互不覆盖
func (s *SessionService) reset(sess *session, topic string) {
	sess.logFile = fmt.Sprintf("session_%s_%s.json", s.now().Format("2006-01-02_15-04-05"), uuid.NewString())
	sess.conversationID = ""
	sess.data = model.SessionLog{Topic: topic, SessionLog: []model.SessionEntry{}}
}

// GenerateQuestion 为会话追加一道新题。id 为空或未知时创建新会话；主题变化时重新开始；
// strengthening 为 true 时沿用原主题并清空已有记录和分析结果。
func (s *SessionService) GenerateQuestion(ctx context.Context, id, topic string, strengthening bool) (*model.QuestionView, error) {
	var sess *session
	if topic == "" {
		// 没有主题时只能继续强化已有会话，不创建新会话
		existing, err := s.lookup(id)
		if err != nil || !strengthening {
			return nil, ErrMissingTopic
		}
		sess = existing
	} else {
		sess = s.open(id)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch {
	case strengthening && sess.logFile != "":
		s.logger.Info("识别为继续强化请求", zap.String("session", sess.id), zap.String("topic", sess.data.Topic))
		sess.data.SessionLog = []model.SessionEntry{}
		sess.data.QuantumAnalysis = nil
	case sess.logFile == "" || sess.data.Topic != topic:
		if topic == "" {
			return nil, ErrMissingTopic
		}
		s.logger.Info("识别为新主题测试，创建全新会话", zap.String("session", sess.id), zap.String("topic", topic))
		s.reset(sess, topic)
	}

	pkg, conversationID, err := s.generator.GenerateQuestion(ctx, sess.data.Topic, s.userID, sess.conversationID)
	if conversationID != "" {
		sess.conversationID = conversationID
	}
	if err != nil {
		return nil, err
	}

	num := len(sess.data.SessionLog) + 1
	sess.data.SessionLog = append(sess.data.SessionLog, model.SessionEntry{
		QuestionNum:   &num,
		QuestionText:  pkg.Question,
		Options:       pkg.Options,
		CorrectAnswer: pkg.CorrectAnswer,
		Explanation:   pkg.Explanation,
		Difficulty:    pkg.Difficulty,
	})
	sess.startedAt = s.now()
	if err := s.persist(sess); err != nil {
		return nil, err
	}

	return &model.QuestionView{
		SessionID:    sess.id,
		QuestionNum:  num,
		QuestionText: pkg.Question,
		Options:      pkg.Options,
	}, nil
}

// SubmitAnswer 判定最近一道未作答题目，记录用时并计算三维特征
func (s *SessionService) SubmitAnswer(id, answer string) (*model.SessionEntry, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	n := len(sess.data.SessionLog)
	if n == 0 || sess.data.SessionLog[n-1].IsCorrect != nil {
		return nil, ErrNoPendingQuestion
	}
	entry := &sess.data.SessionLog[n-1]

	elapsed := s.now().Sub(sess.startedAt).Seconds()
	correct := answer == entry.CorrectAnswer
	rounded := math.Round(elapsed*100) / 100
	difficulty := 0
	if entry.Difficulty != nil {
		difficulty = *entry.Difficulty
	}
	feature := quantum.EncodeFeature(difficulty, correct, elapsed, s.thresholds)

	entry.UserAnswer = &answer
	entry.IsCorrect = &correct
	entry.TimeTaken = &rounded
	entry.Feature3D = &feature

	s.logger.Debug("记录作答结果", zap.String("session", sess.id), zap.Int("question_num", n),
		zap.Bool("correct", correct), zap.Float64("time_taken", rounded), zap.String("performance_code", feature.PerformanceCode))
	if err := s.persist(sess); err != nil {
		return nil, err
	}
	out := *entry
	return &out, nil
}

// EndSession 返回会话的作答日志，会话本身保留以便随后请求分析
func (s *SessionService) EndSession(id string) ([]model.SessionEntry, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.logFile == "" {
		return nil, ErrSessionNotFound
	}
	return append([]model.SessionEntry{}, sess.data.SessionLog...), nil
}

// Analyze 用客户端回传的日志计算掌握度，结果写入会话日志的 quantum_analysis
func (s *SessionService) Analyze(ctx context.Context, id string, entries []model.SessionEntry) (model.MasteryResult, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return model.MasteryResult{}, err
	}
	if len(entries) == 0 {
		return model.MasteryResult{}, ErrEmptyAnalysisInput
	}
	records, err := model.NewAnswerRecords(entries)
	if err != nil {
		return model.MasteryResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.logFile == "" {
		return model.MasteryResult{}, ErrSessionNotFound
	}

	est := s.estimator.Evaluate(ctx, records)
	if est.Err != nil {
		s.logger.Warn("掌握度评估未成功", zap.String("session", id), zap.Stringer("outcome", est.Outcome), zap.Error(est.Err))
	}
	result := est.Result
	sess.data.QuantumAnalysis = &result
	s.logger.Info("正在将量子分析结果写入日志文件", zap.String("file", sess.logFile), zap.Float64("score", result.Score))
	if err := s.persist(sess); err != nil {
		return result, err
	}
	return result, nil
}
