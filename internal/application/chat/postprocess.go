package chat

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// UncitedCitation 全文无可解析引用时的哨兵引用行
const UncitedCitation = "Source: General Knowledge / Uncited"

var (
	// citationPattern 匹配第一条 [标签, 秒数] 形式的引用,标签内不允许逗号和方括号
	citationPattern = regexp.MustCompile(`(?i)\[\s*([^,\[\]]+),\s*([\d.]+)\s*\]`)

	// bracketPattern 清稿时移除所有方括号片段,含引用之外的杂项标记
	bracketPattern = regexp.MustCompile(`\[.*?\]`)

	// boilerplatePattern 针对特定模型版本反复输出的同一句无关开场白,定点剔除
	// TODO: 换用新的生成模型后确认是否仍会出现,不再出现则删除
	boilerplatePattern = regexp.MustCompile(`^(A fuzzy set is a mathematical concept used to represent uncertainty or imprecision in variables\s*)\.`)
)

// Process 从累积的生成全文中提取首条引用并清理正文
// 返回 (干净回答, 引用行);无引用时回答仅做 trim,引用行为哨兵值
func Process(fullText string) (answer, citation string) {
	m := citationPattern.FindStringSubmatch(fullText)
	if m == nil {
		return strings.TrimSpace(fullText), UncitedCitation
	}

	label := strings.TrimSpace(m[1])
	rawSeconds := m[2]
	citation = fmt.Sprintf("Source: %s | Time: %s (%ss)",
		label, FormatSecondsToMMSS(rawSeconds), rawSeconds)

	answer = bracketPattern.ReplaceAllString(fullText, "")
	answer = strings.ReplaceAll(answer, "\n", " ")
	answer = strings.TrimSpace(answer)
	answer = boilerplatePattern.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	return answer, citation
}

// FormatSecondsToMMSS 将秒数字符串转为 MM:SS,向下取整,两位补零
// 无法解析时返回 "N/A"
func FormatSecondsToMMSS(raw string) string {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "N/A"
	}
	total := int(math.Floor(secs))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
