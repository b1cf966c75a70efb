package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFile_Go_OneChunkPerFunction(t *testing.T) {
	source := `package greet

import "fmt"

// Hello says hello to name.
func Hello(name string) string {
	return fmt.Sprintf("hello %s", name)
}

func Bye() string {
	return "bye"
}
`
	c := New(Options{})
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), FileInput{
		AbsPath:  "/repo/greet.go",
		RelPath:  "greet.go",
		Content:  []byte(source),
		Language: "go",
	})

	require.NoError(t, err)

	var names []string
	var fileContext *Chunk
	for _, ch := range chunks {
		if ch.Kind == "file_context" {
			fileContext = ch
			continue
		}
		names = append(names, ch.Name)
	}

	require.NotNil(t, fileContext)
	assert.Contains(t, fileContext.Code, "greet.go")
	assert.ElementsMatch(t, []string{"Hello", "Bye"}, names)

	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
		assert.NotEmpty(t, ch.ID)
		assert.LessOrEqual(t, ch.Tokens, DefaultMaxChunkTokens)
	}
}

func TestChunkFile_IndexTextIncludesMetadataAndDocstring(t *testing.T) {
	source := `package greet

// Hello says hello.
func Hello() string {
	return "hi"
}
`
	c := New(Options{})
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), FileInput{
		RelPath:  "greet.go",
		Content:  []byte(source),
		Language: "go",
	})
	require.NoError(t, err)

	var helloChunk *Chunk
	for _, ch := range chunks {
		if ch.Name == "Hello" {
			helloChunk = ch
		}
	}
	require.NotNil(t, helloChunk)
	assert.Contains(t, helloChunk.IndexText, "Hello says hello.")
	assert.Contains(t, helloChunk.IndexText, "function: Hello")
	assert.Contains(t, helloChunk.IndexText, helloChunk.Code)
}

func TestChunkFile_UnsupportedLanguage_FallsBackToLineWindows(t *testing.T) {
	content := strings.Repeat("some plain text line\n", 300)

	c := New(Options{})
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), FileInput{
		RelPath:  "notes.txt",
		Content:  []byte(content),
		Language: "plaintext",
	})

	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "block", ch.Kind)
	}
}

func TestChunkFile_OversizeFunctionSplitsWithPartNaming(t *testing.T) {
	var body strings.Builder
	body.WriteString("package big\n\nfunc Big() {\n")
	for i := 0; i < 400; i++ {
		body.WriteString("\tdoSomething()\n")
	}
	body.WriteString("}\n")

	c := New(Options{MaxChunkTokens: 256, OverlapTokens: 32})
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), FileInput{
		RelPath:  "big.go",
		Content:  []byte(body.String()),
		Language: "go",
	})
	require.NoError(t, err)

	var parts int
	for _, ch := range chunks {
		if strings.HasPrefix(ch.Name, "Big_part") {
			parts++
		}
	}
	assert.Greater(t, parts, 1)
}

func TestChunkFile_EmptyContent_ReturnsNil(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	chunks, err := c.ChunkFile(context.Background(), FileInput{RelPath: "empty.go", Language: "go"})
	require.NoError(t, err)
	assert.Nil(t, chunks)
}
