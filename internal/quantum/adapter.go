package quantum

//go:generate mockgen -destination=mock_backend_test.go -package=quantum . Backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"Q-ITS-Mastery-Backend/internal/monitoring"

	"go.uber.org/zap"
)

// Backend 外部量子执行平台。Submit 提交电路并返回任务句柄，Fetch 阻塞直到拿到结果或失败。
type Backend interface {
	Submit(ctx context.Context, circuit *Circuit, shots int) (string, error)
	Fetch(ctx context.Context, handle string) ([]Reply, error)
}

// Reply 平台查询接口返回的一条实验结果。probability 可能是对象，也可能是包含对象的 JSON 字符串。
type Reply struct {
	Probability json.RawMessage `json:"probability"`
}

type Distribution map[string]float64

type Executor struct {
	backend  Backend
	capacity int
	machine  string
	shots    int
	logger   *zap.Logger
}

func NewExecutor(backend Backend, capacity int, machine string, shots int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{backend: backend, capacity: capacity, machine: machine, shots: shots, logger: logger}
}

// Execute 校验容量后提交电路并取回概率分布，只尝试一次。
func (x *Executor) Execute(ctx context.Context, c *Circuit) (Distribution, error) {
	if c.Active > x.capacity {
		return nil, &CapacityExceededError{Active: c.Active, Capacity: x.capacity, Machine: x.machine}
	}

	start := time.Now()
	defer func() {
		monitoring.BackendDuration.WithLabelValues(x.machine).Observe(time.Since(start).Seconds())
	}()

	x.logger.Info("正在提交量子任务", zap.String("machine", x.machine), zap.Int("active_qubits", c.Active), zap.Int("shots", x.shots))
	handle, err := x.backend.Submit(ctx, c, x.shots)
	if err != nil {
		return nil, classifyBackendError("submit", err)
	}
	x.logger.Info("任务提交成功", zap.String("query_id", handle))

	replies, err := x.backend.Fetch(ctx, handle)
	if err != nil {
		return nil, classifyBackendError("fetch", err)
	}
	return parseDistribution(replies, c.Active)
}

func classifyBackendError(op string, err error) error {
	if errors.Is(err, ErrMalformedReply) {
		return &BackendResponseError{Reason: op + " reply unparsable", Err: err}
	}
	return &BackendCommunicationError{Op: op, Err: err}
}

func parseDistribution(replies []Reply, n int) (Distribution, error) {
	if len(replies) == 0 {
		return nil, &BackendResponseError{Reason: "empty result"}
	}
	raw := bytes.TrimSpace(replies[0].Probability)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &BackendResponseError{Reason: "missing probability"}
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, &BackendResponseError{Reason: "probability string unparsable", Err: err}
		}
		raw = []byte(inner)
	}

	var dist Distribution
	if err := json.Unmarshal(raw, &dist); err != nil {
		return nil, &BackendResponseError{Reason: "probability unparsable", Err: err}
	}
	if dist == nil {
		return nil, &BackendResponseError{Reason: "missing probability"}
	}

	for key, p := range dist {
		if len(key) != n || strings.Trim(key, "01") != "" {
			return nil, &BackendResponseError{Reason: fmt.Sprintf("unexpected bitstring %q for %d qubits", key, n)}
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, &BackendResponseError{Reason: fmt.Sprintf("probability %v of %q out of range", p, key)}
		}
	}
	return dist, nil
}
