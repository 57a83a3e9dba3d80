package quantum

import (
	"strconv"
	"strings"
)

type Gate string

const (
	GateRY Gate = "RY"
	GateH  Gate = "H"
	GateCZ Gate = "CZ"
	GateM  Gate = "M"
)

type Instruction struct {
	Gate   Gate
	Qubits []int
	Theta  float64
}

// Circuit 一次评估使用的电路描述。宽度固定为机器容量，只有前 Active 个比特被旋转、纠缠和测量。
type Circuit struct {
	Capacity     int
	Active       int
	Angles       []float64
	Instructions []Instruction
}

// BuildCircuit 依次放置 RY 旋转、相邻比特间的 CX 链（分解为 H-CZ-H）和活动比特上的测量。
// 调用方负责保证 len(angles) 不超过 capacity。
func BuildCircuit(angles []float64, capacity int) *Circuit {
	n := len(angles)
	c := &Circuit{
		Capacity: capacity,
		Active:   n,
		Angles:   append([]float64(nil), angles...),
	}

	for i, theta := range angles {
		c.Instructions = append(c.Instructions, Instruction{Gate: GateRY, Qubits: []int{i}, Theta: theta})
	}

	for _, pair := range c.EntangledPairs() {
		control, target := pair[0], pair[1]
		c.Instructions = append(c.Instructions,
			Instruction{Gate: GateH, Qubits: []int{target}},
			Instruction{Gate: GateCZ, Qubits: []int{control, target}},
			Instruction{Gate: GateH, Qubits: []int{target}},
		)
	}

	for _, q := range c.MeasuredQubits() {
		c.Instructions = append(c.Instructions, Instruction{Gate: GateM, Qubits: []int{q}})
	}
	return c
}

// EntangledPairs 返回 (i, i+1) 形式的控制/目标比特对
func (c *Circuit) EntangledPairs() [][2]int {
	if c.Active < 2 {
		return nil
	}
	pairs := make([][2]int, 0, c.Active-1)
	for i := 0; i < c.Active-1; i++ {
		pairs = append(pairs, [2]int{i, i + 1})
	}
	return pairs
}

func (c *Circuit) MeasuredQubits() []int {
	qs := make([]int, c.Active)
	for i := range qs {
		qs[i] = i
	}
	return qs
}

// QCIS 按天衍平台的 QCIS 文本格式输出电路，每行一条指令
func (c *Circuit) QCIS() string {
	var b strings.Builder
	for _, ins := range c.Instructions {
		b.WriteString(string(ins.Gate))
		for _, q := range ins.Qubits {
			b.WriteString(" Q")
			b.WriteString(strconv.Itoa(q))
		}
		if ins.Gate == GateRY {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(ins.Theta, 'f', -1, 64))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
