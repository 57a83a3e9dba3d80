package quantum

import (
	"Q-ITS-Mastery-Backend/internal/model"
)

const defaultThresholdSeconds = 30.0

// Thresholds 每个难度的"快速作答"时间阈值（秒）
type Thresholds map[int]float64

func DefaultThresholds() Thresholds {
	return Thresholds{1: 8, 2: 15, 3: 25, 4: 40, 5: 60}
}

func (t Thresholds) For(difficulty int) float64 {
	if secs, ok := t[difficulty]; ok {
		return secs
	}
	return defaultThresholdSeconds
}

func (t Thresholds) clone() Thresholds {
	out := make(Thresholds, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// EncodeFeature 计算一道题的三维特征。performance_code 的高位即正确性，低位表示是否在阈值内完成。
func EncodeFeature(difficulty int, correct bool, timeTaken float64, th Thresholds) model.PerformanceFeature {
	fast := timeTaken <= th.For(difficulty)
	var code string
	switch {
	case correct && fast:
		code = "11"
	case correct:
		code = "10"
	case fast:
		code = "01"
	default:
		code = "00"
	}
	correctness := 0
	if correct {
		correctness = 1
	}
	return model.PerformanceFeature{Difficulty: difficulty, Correctness: correctness, PerformanceCode: code}
}

// FeatureOf 返回记录的特征；未作答且没有携带特征的记录返回 false。
func FeatureOf(rec model.AnswerRecord, th Thresholds) (model.PerformanceFeature, bool) {
	if rec.Answered {
		return EncodeFeature(rec.Difficulty, rec.IsCorrect, rec.TimeTaken, th), true
	}
	if rec.Preset != nil {
		return *rec.Preset, true
	}
	return model.PerformanceFeature{}, false
}

// DifficultyCode 难度 1-5 压缩到 2 比特，4 和 5 共用 0b11。
func DifficultyCode(difficulty int) int {
	switch difficulty {
	case 2:
		return 0b01
	case 3:
		return 0b10
	case 4, 5:
		return 0b11
	default:
		return 0b00
	}
}

func performanceValue(code string) int {
	switch code {
	case "11":
		return 0b11
	case "10":
		return 0b10
	case "01":
		return 0b01
	default:
		return 0b00
	}
}

// ClassicalScore 综合分 = 难度编码 << 2 | 表现编码，取值 0-15
func ClassicalScore(f model.PerformanceFeature) int {
	return DifficultyCode(f.Difficulty)<<2 | performanceValue(f.PerformanceCode)
}
