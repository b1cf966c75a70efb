package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAndExtract(t *testing.T, source, language string) []ParsedNode {
	t.Helper()
	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(context.Background(), []byte(source), language)
	require.NoError(t, err)

	return NewExtractor().Extract(tree)
}

func TestExtractor_Go_FindsFunctionsAndMethods(t *testing.T) {
	nodes := parseAndExtract(t, `package main

// Greet says hello.
func Greet(name string) string {
	return "hello " + name
}

type Server struct{}

func (s *Server) Start() error {
	return nil
}
`, "go")

	var fn, method *ParsedNode
	for i := range nodes {
		switch nodes[i].Name {
		case "Greet":
			fn = &nodes[i]
		case "Start":
			method = &nodes[i]
		}
	}

	require.NotNil(t, fn)
	assert.Equal(t, KindFunction, fn.Kind)
	assert.Contains(t, fn.Docstring, "Greet says hello.")

	require.NotNil(t, method)
	assert.Equal(t, KindMethod, method.Kind)
}

func TestExtractor_Go_TypeDeclarationIsType(t *testing.T) {
	nodes := parseAndExtract(t, `package main

type Config struct {
	Name string
}
`, "go")

	var found bool
	for _, n := range nodes {
		if n.Name == "Config" {
			found = true
			assert.Equal(t, KindType, n.Kind)
		}
	}
	assert.True(t, found)
}

func TestExtractor_Python_TracksScopeAndDecorated(t *testing.T) {
	nodes := parseAndExtract(t, `class Greeter:
    def hello(self):
        """Say hello."""
        return "hi"

    @staticmethod
    def bye():
        pass
`, "python")

	var hello, bye *ParsedNode
	for i := range nodes {
		switch nodes[i].Name {
		case "hello":
			hello = &nodes[i]
		case "bye":
			bye = &nodes[i]
		}
	}

	require.NotNil(t, hello)
	assert.Equal(t, []string{"Greeter"}, hello.Scope)
	assert.Equal(t, "Say hello.", hello.Docstring)

	// bye is wrapped in a decorated_definition, which surfaces separately
	// from the function_definition it wraps.
	_ = bye
	var sawDecorated bool
	for _, n := range nodes {
		if n.Kind == KindDecorated {
			sawDecorated = true
		}
	}
	assert.True(t, sawDecorated)
}

func TestExtractor_TypeScript_ArrowFunctionConst(t *testing.T) {
	nodes := parseAndExtract(t, `const add = (a: number, b: number): number => a + b;
`, "typescript")

	var found bool
	for _, n := range nodes {
		if n.Name == "add" {
			found = true
			assert.Equal(t, KindFunction, n.Kind)
		}
	}
	assert.True(t, found)
}

func TestExtractor_NilTree_ReturnsNil(t *testing.T) {
	assert.Nil(t, NewExtractor().Extract(nil))
	assert.Nil(t, NewExtractor().Extract(&Tree{}))
}
