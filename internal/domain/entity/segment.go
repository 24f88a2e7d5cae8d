// Package entity 定义领域实体
package entity

// SubtitleSegment 一条课程字幕片段及其预计算的嵌入向量。
// 由离线预处理产出，进程启动时只读加载，整个生命周期内不可变。
type SubtitleSegment struct {
	// Number 片段在课程中的序号
	Number int `json:"number"`
	// Title 课程标题（如 "Lecture 2"）
	Title string `json:"title"`
	// Start 片段起始时间（秒）
	Start float64 `json:"start"`
	// Text 字幕文本
	Text string `json:"text"`
	// Embedding 固定维度的嵌入向量
	Embedding []float32 `json:"embedding"`
}
