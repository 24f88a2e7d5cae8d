// Package chat 实现对话编排:提示词构建、流式生成、回复后处理与会话历史
package chat

import (
	"encoding/json"
	"fmt"

	"lecture-rag-api/internal/application/retrieval"
)

// promptRecord 注入提示词的上下文记录,只保留回答所需字段,不携带嵌入向量
type promptRecord struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Start  float64 `json:"start"`
	Text   string  `json:"text"`
}

// promptTemplate 固定指令模板。引用格式和约束措辞是后处理正则的契约,改动需同步 postprocess.go
const promptTemplate = `You are a helpful teaching assistant for a lecture series. Answer strictly and only from the lecture context below.

RULES:
1. Always reply in the same language the question is asked in.
2. STRICT CITATION RULE: immediately after any fact taken from the context, cite it in exactly this format: [<Lecture Title or Number>, <time in seconds>]. Example: [Lecture 2, 417.68].
3. Use only the provided context. Never cite textbooks, papers, authors, or any source outside the context.
4. Do not add conversational padding, greetings, or disclaimers. Answer the question directly.
5. If the context does not contain the answer, say so briefly.

CONTEXT (JSON records, one per subtitle segment):
%s

QUESTION:
%s

ANSWER:`

// BuildPrompt 将检索命中序列化为 JSON 记录块并套入指令模板
// 纯函数,相同输入产生相同输出
func BuildPrompt(query string, hits []retrieval.Hit) string {
	records := make([]promptRecord, 0, len(hits))
	for _, h := range hits {
		records = append(records, promptRecord{
			Number: h.Segment.Number,
			Title:  h.Segment.Title,
			Start:  h.Segment.Start,
			Text:   h.Segment.Text,
		})
	}

	// 对固定的结构体切片,json.Marshal 输出确定
	ctxJSON, err := json.Marshal(records)
	if err != nil {
		ctxJSON = []byte("[]")
	}

	return fmt.Sprintf(promptTemplate, ctxJSON, query)
}
