package quantum

import (
	"context"
	"errors"
	"fmt"

	"Q-ITS-Mastery-Backend/internal/model"
)

const (
	LevelMaster     = "大师精通"
	LevelProficient = "熟练应用"
	LevelBasic      = "基础学习"
	LevelSprouting  = "知识萌芽"
	LevelSystem     = "系统错误"
	LevelCompute    = "计算错误"
)

type band struct {
	lower    float64
	feedback model.Feedback
}

// bands 按下界从高到低排列，命中第一个 score >= lower 的区间
var bands = []band{
	{0.85, model.Feedback{
		Level:      LevelMaster,
		Comment:    "表现卓越！您已完全掌握了这部分知识。",
		Suggestion: "太棒了！试试挑战一些更深或更广的难题吧！",
	}},
	{0.50, model.Feedback{
		Level:      LevelProficient,
		Comment:    "非常不错！您已经相当熟练了。",
		Suggestion: "保持状态，建议再练习几次来彻底巩固。",
	}},
	{0.20, model.Feedback{
		Level:      LevelBasic,
		Comment:    "有了一个不错的开始，但基础还需加强。",
		Suggestion: "您的基础还比较薄弱。建议回顾知识点，多做几轮练习。",
	}},
}

var sproutingFeedback = model.Feedback{
	Level:      LevelSprouting,
	Comment:    "看起来您对这部分知识还不太熟悉。",
	Suggestion: "没关系，先仔细学习相关的知识点，弄懂概念后再来尝试。",
}

// FeedbackFor 对任意分数都有定义：高于 1 归入最高档，负数和 NaN 归入最低档。
func FeedbackFor(score float64) model.Feedback {
	for _, b := range bands {
		if score >= b.lower {
			return b.feedback
		}
	}
	return sproutingFeedback
}

func EmptyResult() model.MasteryResult {
	return model.MasteryResult{Score: 0, Feedback: FeedbackFor(0)}
}

func CapacityResult(err *CapacityExceededError) model.MasteryResult {
	return model.MasteryResult{
		Score: 0,
		Feedback: model.Feedback{
			Level:      LevelSystem,
			Comment:    fmt.Sprintf("用户答题数(%d)超过了所选机器 '%s' 的容量(%d)。", err.Active, err.Machine, err.Capacity),
			Suggestion: "请减少答题数量或联系管理员。",
		},
	}
}

// BackendErrorResult 只给用户一个简短的错误类别，完整错误写入运维日志
func BackendErrorResult(err error) model.MasteryResult {
	return model.MasteryResult{
		Score: 0,
		Feedback: model.Feedback{
			Level:      LevelCompute,
			Comment:    "在与量子平台通信时发生错误。",
			Suggestion: "请检查后台日志。错误摘要: " + errorSummary(err),
		},
	}
}

func errorSummary(err error) string {
	var respErr *BackendResponseError
	var commErr *BackendCommunicationError
	switch {
	case errors.As(err, &respErr):
		return "平台返回的任务结果为空或格式不正确"
	case errors.As(err, &commErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return "量子平台请求超时"
		}
		return "无法与量子平台完成通信"
	default:
		return "量子计算过程中发生未知错误"
	}
}
