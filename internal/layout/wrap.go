// Package layout 提供与具体 PDF 库解耦的排版原语。
// 宽度度量通过 Measurer 注入：生成器使用真实字体度量，测试使用等宽假度量。
package layout

import "strings"

// Measurer 返回字符串在当前字体/字号下的宽度（pt）。
type Measurer func(s string) float64

// Wrap 对文本做贪心按词折行。
// 每行的度量宽度不超过 maxWidth；唯一例外是单个词本身超宽时独占一行，
// 不做断词。空白会被归一化：用单个空格拼接所有输出行即可还原原文。
func Wrap(text string, maxWidth float64, measure Measurer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := make([]string, 0, 4)
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = word
	}
	return append(lines, line)
}
