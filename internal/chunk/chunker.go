package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codeindex/codeindex/internal/lang"
)

// Options configures chunker behavior.
type Options struct {
	MaxChunkTokens int
	OverlapTokens  int
}

func (o Options) withDefaults() Options {
	if o.MaxChunkTokens == 0 {
		o.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if o.OverlapTokens == 0 {
		o.OverlapTokens = DefaultOverlapTokens
	}
	return o
}

// Chunker splits a file into semantic chunks.
type Chunker struct {
	parser    *lang.Parser
	extractor *lang.Extractor
	registry  *lang.Registry
	options   Options
}

// New creates a Chunker with the default language registry.
func New(opts Options) *Chunker {
	registry := lang.Default()
	return &Chunker{
		parser:    lang.NewParserWithRegistry(registry),
		extractor: lang.NewExtractorWithRegistry(registry),
		registry:  registry,
		options:   opts.withDefaults(),
	}
}

// Close releases the underlying tree-sitter parser.
func (c *Chunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// ChunkFile implements the §4.2 algorithm: parse, extract a file-context
// chunk, build one chunk per declared construct (splitting oversize ones),
// drop chunks too small to be useful, and compute each chunk's indexText.
func (c *Chunker) ChunkFile(ctx context.Context, file FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	if file.Language == "" {
		return nil, nil // unsupported extension: crawler already dropped it, nothing to do
	}
	if _, ok := c.registry.Config(file.Language); !ok {
		return c.chunkByLines(file), nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return c.chunkByLines(file), nil
	}

	nodes := c.extractor.Extract(tree)
	if len(nodes) == 0 {
		return c.chunkByLines(file), nil
	}

	now := time.Now()
	fileContext := c.extractFileContext(tree, file)

	chunks := make([]*Chunk, 0, len(nodes)+1)
	if fileContext != "" {
		headerEnd := strings.Count(fileContext, "\n") + 1
		chunks = append(chunks, &Chunk{
			ID:        chunkID(file.RelPath, 1, headerEnd, fileContext),
			AbsPath:   file.AbsPath,
			RelPath:   file.RelPath,
			Code:      fileContext,
			IndexText: fileContext,
			StartLine: 1,
			EndLine:   headerEnd,
			Language:  file.Language,
			Kind:      string(lang.KindFileContext),
			Tokens:    estimateTokens(fileContext),
			UpdatedAt: now,
		})
	}

	for _, n := range nodes {
		chunks = append(chunks, c.chunkNode(n, tree, file, fileContext, now)...)
	}

	return dropTinyFragments(chunks, c.options), nil
}

// chunkNode turns one parsed construct into one or more chunks, splitting by
// line when the construct alone exceeds MaxChunkTokens.
func (c *Chunker) chunkNode(n lang.ParsedNode, tree *lang.Tree, file FileInput, fileContext string, now time.Time) []*Chunk {
	code := n.Node.Content(tree.Source)
	tokens := estimateTokens(code)

	if tokens <= c.options.MaxChunkTokens {
		return []*Chunk{c.buildChunk(file, code, n, fileContext, now)}
	}
	return c.splitByLines(file, code, n, fileContext, now)
}

func (c *Chunker) buildChunk(file FileInput, code string, n lang.ParsedNode, fileContext string, now time.Time) *Chunk {
	scope := strings.Join(n.Scope, ".")
	return &Chunk{
		ID:        chunkID(file.RelPath, n.StartLine, n.EndLine, code),
		AbsPath:   file.AbsPath,
		RelPath:   file.RelPath,
		Code:      code,
		IndexText: buildIndexText(fileContext, file.RelPath, string(n.Kind), n.Name, scope, n.Docstring, code),
		StartLine: n.StartLine,
		EndLine:   n.EndLine,
		Language:  file.Language,
		Kind:      string(n.Kind),
		Name:      n.Name,
		Scope:     scope,
		Docstring: n.Docstring,
		Tokens:    estimateTokens(code),
		UpdatedAt: now,
	}
}

// splitByLines splits an oversize construct into line windows of
// MaxChunkTokens/4 lines. Only the first sub-chunk carries the docstring;
// sub-chunk names are "<parentName>_partN".
func (c *Chunker) splitByLines(file FileInput, code string, n lang.ParsedNode, fileContext string, now time.Time) []*Chunk {
	lines := strings.Split(code, "\n")
	linesPerChunk := c.options.MaxChunkTokens / TokensPerChar
	if linesPerChunk < MinChunkLines {
		linesPerChunk = MinChunkLines
	}
	overlapLines := c.options.OverlapTokens / TokensPerChar

	var chunks []*Chunk
	for i := 0; i < len(lines); {
		end := i + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		part := strings.Join(lines[i:end], "\n")
		startLine := n.StartLine + i
		endLine := n.StartLine + end - 1

		name := n.Name
		if name != "" {
			name = fmt.Sprintf("%s_part%d", n.Name, len(chunks))
		}
		docstring := ""
		if len(chunks) == 0 {
			docstring = n.Docstring
		}

		scope := strings.Join(n.Scope, ".")
		chunks = append(chunks, &Chunk{
			ID:        chunkID(file.RelPath, startLine, endLine, part),
			AbsPath:   file.AbsPath,
			RelPath:   file.RelPath,
			Code:      part,
			IndexText: buildIndexText(fileContext, file.RelPath, string(n.Kind), name, scope, docstring, part),
			StartLine: startLine,
			EndLine:   endLine,
			Language:  file.Language,
			Kind:      string(n.Kind),
			Name:      name,
			Scope:     scope,
			Docstring: docstring,
			Tokens:    estimateTokens(part),
			UpdatedAt: now,
		})

		if end >= len(lines) {
			break
		}
		next := end - overlapLines
		if next <= i {
			next = end
		}
		i = next
	}
	return chunks
}

// extractFileContext collects the bounded header prefix: header-kind
// top-level nodes (imports, package clause, leading comments) up to a
// line-200 ceiling and a 128-token bound, prefixed with a file path marker.
func (c *Chunker) extractFileContext(tree *lang.Tree, file FileInput) string {
	cfg, ok := c.registry.Config(file.Language)
	if !ok {
		return ""
	}

	var parts []string
	for _, top := range tree.Root.Children {
		if top.StartPoint.Row >= 200 {
			break
		}
		if cfg.HeaderNodeKinds[top.Type] {
			parts = append(parts, top.Content(tree.Source))
		}
	}

	marker := fmt.Sprintf("%s File: %s", commentMarker(cfg), file.RelPath)
	header := strings.Join(parts, "\n")
	if header == "" {
		return marker
	}

	bound := c.options.MaxChunkTokens / 4
	if bound > 128 {
		bound = 128
	}
	combined := marker + "\n" + header
	if estimateTokens(combined) > bound {
		combined = truncateHeadTail(combined, bound*TokensPerChar)
	}
	return combined
}

func commentMarker(cfg *lang.Config) string {
	if cfg.LineComment != "" {
		return cfg.LineComment
	}
	return "//"
}

// truncateHeadTail keeps the first and last maxChars/2 bytes of s and drops
// the middle, matching §4.2's "head-then-tail" truncation strategy.
func truncateHeadTail(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	half := maxChars / 2
	return s[:half] + "\n/* ... */\n" + s[len(s)-half:]
}

func dropTinyFragments(chunks []*Chunk, opts Options) []*Chunk {
	minLines := MinChunkLines
	out := make([]*Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.Kind == string(lang.KindFileContext) {
			out = append(out, ch)
			continue
		}
		if ch.EndLine-ch.StartLine+1 < minLines && ch.Tokens < minLines*10 {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// chunkByLines is the fallback for unsupported languages or unparsed files:
// fixed-size line windows with 25% overlap, emitted as block chunks.
func (c *Chunker) chunkByLines(file FileInput) []*Chunk {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	linesPerChunk := c.options.MaxChunkTokens / TokensPerChar
	if linesPerChunk < MinChunkLines {
		linesPerChunk = MinChunkLines
	}
	overlapLines := linesPerChunk / 4

	lines := strings.Split(content, "\n")
	now := time.Now()

	var chunks []*Chunk
	for i := 0; i < len(lines); {
		end := i + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}
		part := strings.Join(lines[i:end], "\n")
		startLine, endLine := i+1, end

		chunks = append(chunks, &Chunk{
			ID:        chunkID(file.RelPath, startLine, endLine, part),
			AbsPath:   file.AbsPath,
			RelPath:   file.RelPath,
			Code:      part,
			IndexText: part,
			StartLine: startLine,
			EndLine:   endLine,
			Language:  file.Language,
			Kind:      string(lang.KindBlock),
			Tokens:    estimateTokens(part),
			UpdatedAt: now,
		})

		if end >= len(lines) {
			break
		}
		next := end - overlapLines
		if next <= i {
			next = end
		}
		i = next
	}
	return chunks
}

// buildIndexText implements §4.2 step 5: file context, metadata header,
// docstring, code, each separated by a blank line.
func buildIndexText(fileContext, relPath, kind, name, scope, docstring, code string) string {
	header := fmt.Sprintf("// File: %s\n// %s: %s\n// Scope: %s", relPath, kind, orPlaceholder(name), orPlaceholder(scope))

	parts := []string{}
	if fileContext != "" {
		parts = append(parts, fileContext)
	}
	parts = append(parts, header)
	if docstring != "" {
		parts = append(parts, docstring)
	}
	parts = append(parts, code)
	return strings.Join(parts, "\n\n")
}

func orPlaceholder(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func estimateTokens(s string) int {
	return (len(s) + TokensPerChar - 1) / TokensPerChar
}

// chunkID is the content-addressable chunk identity from §3: stable across
// re-indexing whenever (path, lines, code) are unchanged.
func chunkID(relPath string, startLine, endLine int, code string) string {
	input := relPath + "\x00" + strconv.Itoa(startLine) + "\x00" + strconv.Itoa(endLine) + "\x00" + code
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
