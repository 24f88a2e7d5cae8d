package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcess_ExtractsFirstCitation(t *testing.T) {
	answer, citation := Process("The answer is here. [Lecture 2, 50.08]")

	assert.Equal(t, "The answer is here.", answer)
	assert.Equal(t, "Source: Lecture 2 | Time: 00:50 (50.08s)", citation)
}

func TestProcess_NoCitation(t *testing.T) {
	answer, citation := Process("  Just general knowledge.  ")

	assert.Equal(t, "Just general knowledge.", answer)
	assert.Equal(t, UncitedCitation, citation)
}

func TestProcess_SkipsBracketsWithoutComma(t *testing.T) {
	// [junk] 和 [noise] 不含逗号,不是引用;第一条合法引用是 [Fuzzy Set, 417.68]
	answer, citation := Process("Mix [junk] real [Fuzzy Set, 417.68] tail [noise]")

	assert.Equal(t, "Source: Fuzzy Set | Time: 06:57 (417.68s)", citation)
	assert.Equal(t, "Mix  real  tail", answer)
	assert.NotContains(t, answer, "[")
	assert.NotContains(t, answer, "]")
}

func TestProcess_BadSecondsYieldsNA(t *testing.T) {
	answer, citation := Process("See [Intro, .]")

	assert.Equal(t, "Source: Intro | Time: N/A (.s)", citation)
	assert.Equal(t, "See", answer)
}

func TestProcess_CollapsesNewlines(t *testing.T) {
	answer, _ := Process("Line1 [L1, 10]\nLine2")

	assert.Equal(t, "Line1  Line2", answer)
}

func TestProcess_StripsBoilerplateLeadIn(t *testing.T) {
	full := "A fuzzy set is a mathematical concept used to represent uncertainty or imprecision in variables. Real answer. [Lecture 1, 5.0]"
	answer, citation := Process(full)

	assert.Equal(t, "Real answer.", answer)
	assert.Equal(t, "Source: Lecture 1 | Time: 00:05 (5.0s)", citation)
}

func TestProcess_CitationOnly(t *testing.T) {
	answer, citation := Process("[Lecture 2, 50.08]")

	assert.Empty(t, answer)
	assert.Equal(t, "Source: Lecture 2 | Time: 00:50 (50.08s)", citation)
}

func TestProcess_CaseInsensitiveAndSpacing(t *testing.T) {
	_, citation := Process("fact [  LECTURE 7 ,  120.5 ]")

	assert.Equal(t, "Source: LECTURE 7 | Time: 02:00 (120.5s)", citation)
}

func TestFormatSecondsToMMSS(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0", "00:00"},
		{"59.9", "00:59"},
		{"60", "01:00"},
		{"417.68", "06:57"},
		{"3599.99", "59:59"},
		{"3600", "60:00"},
		{"abc", "N/A"},
		{".", "N/A"},
		{"", "N/A"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatSecondsToMMSS(tc.raw), "raw=%q", tc.raw)
	}
}
