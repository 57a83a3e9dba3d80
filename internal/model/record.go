package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedRecord = errors.New("malformed answer record")

var performanceCodes = map[string]struct{}{"11": {}, "10": {}, "01": {}, "00": {}}

// AnswerRecord 经过校验的答题记录。Answered 为 false 且 Preset 为空时，
// 该记录不参与评分，但也不算错误。
type AnswerRecord struct {
	QuestionNum int
	Difficulty  int
	Answered    bool
	IsCorrect   bool
	TimeTaken   float64
	Preset      *PerformanceFeature
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// NewAnswerRecord 把会话日志条目转换为答题记录。缺少题号或难度等必需字段时
// 返回 ErrMalformedRecord；仅缺少作答信息时正常返回。
func NewAnswerRecord(e SessionEntry) (AnswerRecord, error) {
	if e.QuestionNum == nil {
		return AnswerRecord{}, malformed("缺少题号 question_num")
	}
	num := *e.QuestionNum
	if num <= 0 {
		return AnswerRecord{}, malformed("题号 %d 不是正整数", num)
	}

	var difficulty int
	switch {
	case e.Difficulty != nil:
		difficulty = *e.Difficulty
	case e.Feature3D != nil:
		difficulty = e.Feature3D.Difficulty
	default:
		return AnswerRecord{}, malformed("题目 %d 缺少难度 difficulty", num)
	}
	if difficulty < 1 || difficulty > 5 {
		return AnswerRecord{}, malformed("题目 %d 的难度 %d 超出 1-5 范围", num, difficulty)
	}

	rec := AnswerRecord{QuestionNum: num, Difficulty: difficulty}

	if e.IsCorrect != nil && e.TimeTaken != nil {
		if *e.TimeTaken < 0 {
			return AnswerRecord{}, malformed("题目 %d 的用时 %.2f 为负数", num, *e.TimeTaken)
		}
		rec.Answered = true
		rec.IsCorrect = *e.IsCorrect
		rec.TimeTaken = *e.TimeTaken
	}

	if e.Feature3D != nil {
		f := *e.Feature3D
		if _, ok := performanceCodes[f.PerformanceCode]; !ok {
			return AnswerRecord{}, malformed("题目 %d 的表现编码 %q 无效", num, f.PerformanceCode)
		}
		if f.Difficulty < 1 || f.Difficulty > 5 {
			f.Difficulty = difficulty
		}
		rec.Preset = &f
	}

	return rec, nil
}

func NewAnswerRecords(entries []SessionEntry) ([]AnswerRecord, error) {
	records := make([]AnswerRecord, 0, len(entries))
	for i, e := range entries {
		rec, err := NewAnswerRecord(e)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条记录: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseSessionEntries 解析作答日志，既接受条目数组，也接受带 session_log 字段的完整会话日志。
func ParseSessionEntries(data []byte) ([]SessionEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var entries []SessionEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("解析作答日志失败: %w", err)
		}
		return entries, nil
	}
	var log SessionLog
	if err := json.Unmarshal(trimmed, &log); err != nil {
		return nil, fmt.Errorf("解析作答日志失败: %w", err)
	}
	return log.SessionLog, nil
}
