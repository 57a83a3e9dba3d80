package quantum

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput = errors.New("no scorable answer records")
	// ErrMalformedReply 后端实现用它标记"收到了回复但无法解析"，执行适配器据此归类为 BackendResponseError
	ErrMalformedReply = errors.New("malformed backend reply")
)

type CapacityExceededError struct {
	Active   int
	Capacity int
	Machine  string
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("active qubits %d exceed capacity %d of machine %q", e.Active, e.Capacity, e.Machine)
}

// BackendCommunicationError 传输失败、超时或平台返回非成功状态
type BackendCommunicationError struct {
	Op  string
	Err error
}

func (e *BackendCommunicationError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Op, e.Err)
}

func (e *BackendCommunicationError) Unwrap() error { return e.Err }

// BackendResponseError 平台有回复，但概率数据缺失或格式不正确
type BackendResponseError struct {
	Reason string
	Err    error
}

func (e *BackendResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed backend response: %s: %v", e.Reason, e.Err)
	}
	return "malformed backend response: " + e.Reason
}

func (e *BackendResponseError) Unwrap() error { return e.Err }
