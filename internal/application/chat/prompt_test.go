package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lecture-rag-api/internal/application/retrieval"
	"lecture-rag-api/internal/domain/entity"
)

func sampleHits() []retrieval.Hit {
	return []retrieval.Hit{
		{
			Segment: entity.SubtitleSegment{
				Number: 2,
				Title:  "Lecture 2",
				Start:  417.68,
				Text:   "membership functions assign degrees between zero and one",
			},
			Score: 0.91,
		},
		{
			Segment: entity.SubtitleSegment{
				Number: 3,
				Title:  "Lecture 3",
				Start:  12.5,
				Text:   "defuzzification turns a fuzzy output into a crisp value",
			},
			Score: 0.74,
		},
	}
}

func TestBuildPrompt_ContainsContextAndQuestion(t *testing.T) {
	prompt := BuildPrompt("What is a membership function?", sampleHits())

	assert.Contains(t, prompt, "What is a membership function?")
	assert.Contains(t, prompt, `"number":2`)
	assert.Contains(t, prompt, `"title":"Lecture 2"`)
	assert.Contains(t, prompt, `"start":417.68`)
	assert.Contains(t, prompt, "membership functions assign degrees")
	assert.Contains(t, prompt, "defuzzification")
}

func TestBuildPrompt_CarriesCitationInstruction(t *testing.T) {
	prompt := BuildPrompt("q", sampleHits())

	// 引用格式指令是后处理正则的契约
	assert.Contains(t, prompt, "[<Lecture Title or Number>, <time in seconds>]")
	assert.Contains(t, prompt, "same language")
	assert.Contains(t, prompt, "only the provided context")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	a := BuildPrompt("q", sampleHits())
	b := BuildPrompt("q", sampleHits())

	assert.Equal(t, a, b)
}

func TestBuildPrompt_EmptyHits(t *testing.T) {
	prompt := BuildPrompt("q", nil)

	assert.Contains(t, prompt, "[]")
	assert.Contains(t, prompt, "q")
}

func TestBuildPrompt_OmitsEmbeddings(t *testing.T) {
	hits := sampleHits()
	hits[0].Segment.Embedding = []float32{0.1, 0.2, 0.3}

	prompt := BuildPrompt("q", hits)

	assert.NotContains(t, prompt, "embedding")
}
