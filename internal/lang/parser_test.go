package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ParseGoFile_ReturnsAST(t *testing.T) {
	source := []byte(`package main

func hello() {
	println("hello")
}

func goodbye() {
	println("bye")
}
`)

	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(context.Background(), source, "go")

	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "go", tree.Language)

	funcNodes := tree.Root.FindAllByType("function_declaration")
	assert.Len(t, funcNodes, 2)
}

func TestParser_ParseTypeScript_ReturnsAST(t *testing.T) {
	source := []byte(`interface User {
	name: string;
}

function greet(user: User): string {
	return "hi " + user.name;
}

const add = (a: number, b: number): number => a + b;
`)

	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(context.Background(), source, "typescript")

	require.NoError(t, err)
	assert.Len(t, tree.Root.FindAllByType("interface_declaration"), 1)
	assert.Len(t, tree.Root.FindAllByType("function_declaration"), 1)
	assert.Len(t, tree.Root.FindAllByType("arrow_function"), 1)
}

func TestParser_UnsupportedLanguage_ReturnsError(t *testing.T) {
	parser := NewParser()
	defer parser.Close()

	_, err := parser.Parse(context.Background(), []byte("whatever"), "cobol")

	require.Error(t, err)
}

func TestNode_Content_ReturnsSourceSlice(t *testing.T) {
	source := []byte("package main\n")
	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(context.Background(), source, "go")
	require.NoError(t, err)

	assert.Equal(t, string(source), tree.Root.Content(source))
}
