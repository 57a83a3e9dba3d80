package quantum

import (
	"context"
	"errors"
	"fmt"

	"Q-ITS-Mastery-Backend/internal/model"
	"Q-ITS-Mastery-Backend/internal/monitoring"

	"go.uber.org/zap"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEmptyInput
	OutcomeCapacityExceeded
	OutcomeBackendError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmptyInput:
		return "empty_input"
	case OutcomeCapacityExceeded:
		return "capacity_exceeded"
	case OutcomeBackendError:
		return "backend_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Estimate 一次评估的结果。无论哪种 Outcome，Result 都是完整可用的。
type Estimate struct {
	Outcome Outcome
	Result  model.MasteryResult
	Err     error
}

// Engine 掌握度评估引擎。不保存跨调用的状态，可被多个请求并发使用。
type Engine struct {
	cfg      Config
	executor *Executor
	logger   *zap.Logger
}

func NewEngine(cfg Config, backend Backend, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		executor: NewExecutor(backend, cfg.Capacity, cfg.MachineName, cfg.Shots, logger),
		logger:   logger,
	}
}

func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.Thresholds = cfg.Thresholds.clone()
	return cfg
}

// EstimateMastery 对外的唯一入口，总是返回完整的结果
func (e *Engine) EstimateMastery(ctx context.Context, records []model.AnswerRecord) model.MasteryResult {
	return e.Evaluate(ctx, records).Result
}

func (e *Engine) Evaluate(ctx context.Context, records []model.AnswerRecord) (est Estimate) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during mastery estimation: %v", r)
			e.logger.Error("量子计算过程中发生严重错误", zap.Error(err), zap.Stack("stack"))
			est = Estimate{Outcome: OutcomeBackendError, Result: BackendErrorResult(err), Err: err}
		}
		monitoring.EstimationsTotal.WithLabelValues(est.Outcome.String()).Inc()
	}()

	e.logger.Info("Quantum Analyzer: 开始处理会话数据", zap.Int("records", len(records)))

	scores := e.encode(records)
	if len(scores) == 0 {
		e.logger.Warn("没有可用于计算的有效特征数据")
		return Estimate{Outcome: OutcomeEmptyInput, Result: EmptyResult(), Err: ErrEmptyInput}
	}

	angles := CompileAngles(scores, e.cfg.AnglePrecision)
	circuit := BuildCircuit(angles, e.cfg.Capacity)
	e.logger.Debug("电路构建完成",
		zap.Int("active_qubits", circuit.Active),
		zap.Int("capacity", circuit.Capacity),
		zap.Int("entangling_pairs", len(circuit.EntangledPairs())),
		zap.Int("angle_precision", e.cfg.AnglePrecision),
	)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.BackendTimeout)
	defer cancel()

	dist, err := e.executor.Execute(ctx, circuit)
	if err != nil {
		var capErr *CapacityExceededError
		if errors.As(err, &capErr) {
			e.logger.Error("严重错误: 答题数超过机器容量",
				zap.Int("active", capErr.Active), zap.Int("capacity", capErr.Capacity), zap.String("machine", capErr.Machine))
			return Estimate{Outcome: OutcomeCapacityExceeded, Result: CapacityResult(capErr), Err: err}
		}
		e.logger.Error("量子计算过程中发生严重错误", zap.String("detail", fmt.Sprintf("%+v", err)))
		return Estimate{Outcome: OutcomeBackendError, Result: BackendErrorResult(err), Err: err}
	}

	score := MasteryScore(dist, circuit.Active)
	feedback := FeedbackFor(score)
	e.logger.Info("最终掌握度",
		zap.Float64("score", score), zap.Int("active_qubits", circuit.Active), zap.String("level", feedback.Level))

	return Estimate{Outcome: OutcomeSuccess, Result: model.MasteryResult{Score: score, Feedback: feedback}}
}

func (e *Engine) encode(records []model.AnswerRecord) []int {
	scores := make([]int, 0, len(records))
	for _, rec := range records {
		f, ok := FeatureOf(rec, e.cfg.Thresholds)
		if !ok {
			e.logger.Debug("题目缺少作答特征，已跳过", zap.Int("question_num", rec.QuestionNum))
			continue
		}
		s := ClassicalScore(f)
		e.logger.Debug("题目综合分",
			zap.Int("question_num", rec.QuestionNum),
			zap.Int("difficulty", f.Difficulty),
			zap.String("performance_code", f.PerformanceCode),
			zap.Int("classical_score", s),
		)
		scores = append(scores, s)
	}
	return scores
}
