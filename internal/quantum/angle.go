package quantum

import (
	"math"
	"strconv"
)

const maxClassicalScore = 15

// CompileAngle 把 0-15 的综合分线性映射到 [0, π]，并四舍五入到 precision 位小数，
// 以免参数超出平台的字符长度限制。
func CompileAngle(score, precision int) float64 {
	theta := float64(score) / maxClassicalScore * math.Pi
	return roundDecimal(theta, precision)
}

func CompileAngles(scores []int, precision int) []float64 {
	angles := make([]float64, len(scores))
	for i, s := range scores {
		angles[i] = CompileAngle(s, precision)
	}
	return angles
}

// roundDecimal 先格式化为十进制文本再解析回来，结果只取决于输入值本身。
func roundDecimal(x float64, precision int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', precision, 64), 64)
	if err != nil {
		return x
	}
	return v
}
