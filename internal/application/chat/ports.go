package chat

import "context"

// Embedder 文本嵌入端口,每个输入文本对应一个向量,顺序一致
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator 流式生成端口
// 返回的通道按序产出非空文本片段,流结束时关闭;连接失败或非 2xx 在首个片段前以 error 返回
// 通道提前关闭表示流中途终止,调用方拿到已产出的部分
type Generator interface {
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// EmbedCache 查询嵌入缓存端口,可选依赖,缓存故障时直接回源计算,绝不让缓存阻断对话
type EmbedCache interface {
	GetOrCompute(ctx context.Context, text string, compute func() ([]float32, error)) ([]float32, error)
}
