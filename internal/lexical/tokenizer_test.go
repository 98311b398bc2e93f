package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Run("lowercases and splits on non-alphanumerics", func(t *testing.T) {
		tokens := Tokenize("Youth-Literacy: Program outcomes (2023)")
		assert.Equal(t, []string{"youth", "literacy", "program", "outcomes", "2023"}, tokens)
	})

	t.Run("drops stopwords and single characters", func(t *testing.T) {
		tokens := Tokenize("the grant is for a program")
		assert.Equal(t, []string{"grant", "program"}, tokens)
	})

	t.Run("keeps numbers", func(t *testing.T) {
		tokens := Tokenize("FY2024 budget of $50000")
		assert.Equal(t, []string{"fy2024", "budget", "50000"}, tokens)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Tokenize(""))
		assert.Empty(t, Tokenize("  . , !"))
	})
}

func TestTermFrequencies(t *testing.T) {
	tf := TermFrequencies("grant funding grant report")
	assert.Equal(t, 2, tf["grant"])
	assert.Equal(t, 1, tf["funding"])
	assert.Equal(t, 1, tf["report"])

	assert.Nil(t, TermFrequencies(""))
}
