package quantum

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"Q-ITS-Mastery-Backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func answered(num, difficulty int, correct bool, secs float64) model.AnswerRecord {
	return model.AnswerRecord{QuestionNum: num, Difficulty: difficulty, Answered: true, IsCorrect: correct, TimeTaken: secs}
}

func testConfig(capacity int) Config {
	cfg := DefaultConfig()
	cfg.Capacity = capacity
	return cfg
}

func TestEngineEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)

	records := []model.AnswerRecord{
		answered(1, 3, true, 10), // 11
		answered(2, 2, true, 5),  // 7
		answered(3, 1, true, 3),  // 3
		answered(4, 1, true, 2),  // 3
	}

	gomock.InOrder(
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), DefaultShots).DoAndReturn(
			func(_ context.Context, c *Circuit, _ int) (string, error) {
				assert.Equal(t, []float64{2.303834612633, 1.466076571675, 0.628318530718, 0.628318530718}, c.Angles)
				assert.Len(t, c.EntangledPairs(), 3)
				assert.Equal(t, []int{0, 1, 2, 3}, c.MeasuredQubits())
				assert.Equal(t, 16, c.Capacity)
				return "query-42", nil
			}),
		backend.EXPECT().Fetch(gomock.Any(), "query-42").Return(
			[]Reply{{Probability: json.RawMessage(`"{\"1111\": 0.62, \"0111\": 0.2, \"0000\": 0.18}"`)}}, nil),
	)

	engine := NewEngine(testConfig(16), backend, nil)
	est := engine.Evaluate(context.Background(), records)

	require.Equal(t, OutcomeSuccess, est.Outcome)
	assert.NoError(t, est.Err)
	assert.Equal(t, 0.62, est.Result.Score)
	assert.Equal(t, LevelProficient, est.Result.Feedback.Level)
}

func TestEngineAllOnesMissingScoresZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("q", nil)
	backend.EXPECT().Fetch(gomock.Any(), "q").Return([]Reply{{Probability: json.RawMessage(`{"00": 1}`)}}, nil)

	res := NewEngine(testConfig(16), backend, nil).EstimateMastery(context.Background(),
		[]model.AnswerRecord{answered(1, 1, false, 50), answered(2, 1, false, 50)})

	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, LevelSprouting, res.Feedback.Level)
}

func TestEngineEmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	engine := NewEngine(testConfig(16), backend, nil)

	fromNil := engine.Evaluate(context.Background(), nil)
	unannotated := engine.Evaluate(context.Background(), []model.AnswerRecord{
		{QuestionNum: 1, Difficulty: 2},
		{QuestionNum: 2, Difficulty: 4},
	})

	for _, est := range []Estimate{fromNil, unannotated} {
		assert.Equal(t, OutcomeEmptyInput, est.Outcome)
		assert.ErrorIs(t, est.Err, ErrEmptyInput)
		assert.Equal(t, EmptyResult(), est.Result)
	}
	assert.Equal(t, fromNil.Result, unannotated.Result)
}

func TestEngineCapacityExceededNeverCallsBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	backend.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	records := make([]model.AnswerRecord, 17)
	for i := range records {
		records[i] = answered(i+1, 2, true, 1)
	}

	cfg := testConfig(16)
	cfg.MachineName = "tianyan_swn"
	est := NewEngine(cfg, backend, nil).Evaluate(context.Background(), records)

	require.Equal(t, OutcomeCapacityExceeded, est.Outcome)
	var capErr *CapacityExceededError
	require.ErrorAs(t, est.Err, &capErr)
	assert.Equal(t, 0.0, est.Result.Score)
	assert.Equal(t, LevelSystem, est.Result.Feedback.Level)
	assert.Contains(t, est.Result.Feedback.Comment, "tianyan_swn")
}

func TestEngineSkippedRecordsDoNotCountTowardsCapacity(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *Circuit, _ int) (string, error) {
			assert.Equal(t, 2, c.Active)
			return "q", nil
		})
	backend.EXPECT().Fetch(gomock.Any(), "q").Return([]Reply{{Probability: json.RawMessage(`{"11": 0.9}`)}}, nil)

	records := []model.AnswerRecord{
		answered(1, 1, true, 1),
		{QuestionNum: 2, Difficulty: 3},
		{QuestionNum: 3, Difficulty: 3},
		answered(4, 5, true, 1),
	}
	est := NewEngine(testConfig(2), backend, nil).Evaluate(context.Background(), records)
	assert.Equal(t, OutcomeSuccess, est.Outcome)
	assert.Equal(t, LevelMaster, est.Result.Feedback.Level)
}

func TestEngineBackendFailures(t *testing.T) {
	records := []model.AnswerRecord{answered(1, 3, true, 1)}

	t.Run("communication", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("503 Service Unavailable"))

		est := NewEngine(testConfig(16), backend, nil).Evaluate(context.Background(), records)
		assert.Equal(t, OutcomeBackendError, est.Outcome)
		var commErr *BackendCommunicationError
		assert.ErrorAs(t, est.Err, &commErr)
		assert.Equal(t, LevelCompute, est.Result.Feedback.Level)
		assert.NotContains(t, est.Result.Feedback.Suggestion, "503")
	})

	t.Run("empty distribution", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("q", nil)
		backend.EXPECT().Fetch(gomock.Any(), "q").Return([]Reply{{Probability: json.RawMessage(`{}`)}}, nil)

		est := NewEngine(testConfig(16), backend, nil).Evaluate(context.Background(), records)
		// 空分布是合法回复，全 1 结果缺失时得分为 0
		assert.Equal(t, OutcomeSuccess, est.Outcome)
		assert.Equal(t, 0.0, est.Result.Score)
	})

	t.Run("missing probability", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("q", nil)
		backend.EXPECT().Fetch(gomock.Any(), "q").Return([]Reply{}, nil)

		est := NewEngine(testConfig(16), backend, nil).Evaluate(context.Background(), records)
		assert.Equal(t, OutcomeBackendError, est.Outcome)
		var respErr *BackendResponseError
		assert.ErrorAs(t, est.Err, &respErr)
		assert.Equal(t, 0.0, est.Result.Score)
	})

	t.Run("timeout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("q", nil)
		backend.EXPECT().Fetch(gomock.Any(), "q").DoAndReturn(func(ctx context.Context, _ string) ([]Reply, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		cfg := testConfig(16)
		cfg.BackendTimeout = 20 * time.Millisecond
		est := NewEngine(cfg, backend, nil).Evaluate(context.Background(), records)
		assert.Equal(t, OutcomeBackendError, est.Outcome)
		assert.ErrorIs(t, est.Err, context.DeadlineExceeded)
		assert.Contains(t, est.Result.Feedback.Suggestion, "超时")
	})

	t.Run("panic in backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, *Circuit, int) (string, error) { panic("boom") })

		est := NewEngine(testConfig(16), backend, nil).Evaluate(context.Background(), records)
		assert.Equal(t, OutcomeBackendError, est.Outcome)
		assert.Equal(t, LevelCompute, est.Result.Feedback.Level)
	})
}

func TestEngineScoreAlwaysWithinUnitInterval(t *testing.T) {
	for _, p := range []float64{0, 0.2, 0.5, 0.85, 1} {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("q", nil)
		payload, err := json.Marshal(map[string]float64{"1": p})
		require.NoError(t, err)
		backend.EXPECT().Fetch(gomock.Any(), "q").Return([]Reply{{Probability: payload}}, nil)

		res := NewEngine(testConfig(16), backend, nil).EstimateMastery(context.Background(),
			[]model.AnswerRecord{answered(1, 1, true, 1)})
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
		assert.Equal(t, FeedbackFor(p).Level, res.Feedback.Level)
	}
}

func TestEngineConfigIsCopied(t *testing.T) {
	th := Thresholds{1: 8}
	cfg := testConfig(16)
	cfg.Thresholds = th
	engine := NewEngine(cfg, nil, nil)

	th[1] = 1000
	assert.Equal(t, 8.0, engine.Config().Thresholds.For(1))

	got := engine.Config()
	got.Thresholds[1] = 2000
	assert.Equal(t, 8.0, engine.Config().Thresholds.For(1))
}
