package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_SplitsOnWhitespace(t *testing.T) {
	tokens := Tokenize("hello world", 2)
	require.Len(t, tokens, 2)
	assert.Equal(t, "hello", tokens[0])
	assert.Equal(t, "world", tokens[1])
}

func TestTokenize_SplitsCamelCase(t *testing.T) {
	tokens := Tokenize("getUserByID", 2)
	assert.Equal(t, []string{"get", "user", "by", "id"}, tokens)
}

func TestTokenize_SplitsSnakeCase(t *testing.T) {
	tokens := Tokenize("parse_config_file", 2)
	assert.Equal(t, []string{"parse", "config", "file"}, tokens)
}

func TestTokenize_DropsTokensShorterThanMinLen(t *testing.T) {
	tokens := Tokenize("a getX b", 2)
	assert.Equal(t, []string{"get"}, tokens)
}

func TestTokenize_KeepsAcronymsTogether(t *testing.T) {
	tokens := Tokenize("HTTPHandler", 2)
	assert.Equal(t, []string{"http", "handler"}, tokens)
}
