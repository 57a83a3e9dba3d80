package quantum

import "strings"

// MasteryScore 返回全部活动比特都测得 1 的概率，分布中没有该结果时为 0
func MasteryScore(dist Distribution, n int) float64 {
	if n <= 0 {
		return 0
	}
	return dist[strings.Repeat("1", n)]
}
