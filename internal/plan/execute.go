package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeindex/codeindex/internal/bm25"
	"github.com/codeindex/codeindex/internal/chunk"
	"github.com/codeindex/codeindex/internal/embed"
	"github.com/codeindex/codeindex/internal/errtax"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/fuzzy"
	"github.com/codeindex/codeindex/internal/lang"
	"github.com/codeindex/codeindex/internal/vectorstore"
	"github.com/codeindex/codeindex/internal/xref"
)

// Dependencies are the concrete components Execute drives. All fields are
// required except BM25 and Fuzzy's backing files, which Execute creates as
// needed.
type Dependencies struct {
	Chunker   *chunk.Chunker
	Parser    *lang.Parser // separate from the chunker's own parser: xref needs its own tree
	Extractor *lang.Extractor
	Embedder  embed.Embedder
	Vectors   vectorstore.Store
	BM25      bm25.Index
	Fuzzy     *fuzzy.Index
	Xref      *xref.Tracker
	FileIndex *fileindex.Index

	// DataDir is where the xref graph, BM25 index, and fuzzy index are
	// persisted alongside the file index.
	DataDir string
}

// fileChunks is one file's chunking output, carried between Execute's two
// passes so cross-references can be resolved before anything is embedded.
type fileChunks struct {
	file   WorkItem
	chunks []*chunk.Chunk
}

// Execute applies a Plan: deletes first, then parses and chunks every work
// item, resolves the cross-reference graph across all of them in one Merge
// (per §4.2 step 6, CalledBy can't be known file-by-file), backfills each
// chunk's Calls/CalledBy, then embeds/upserts/indexes, and finally persists
// the file index, xref graph, BM25 state, and fuzzy state in that order, per
// §4.7's execution-ordering invariant. A failure partway through leaves the
// file index unadvanced for whichever file failed; already-processed files
// remain committed.
func Execute(ctx context.Context, p Plan, deps Dependencies, progress ProgressFunc) error {
	toRemove := append([]string{}, p.FilesToRemove...)
	for _, f := range p.FilesToIndex {
		toRemove = append(toRemove, f.RelPath) // re-index: drop old chunks first
	}

	for i, relPath := range toRemove {
		report(progress, PhaseAnalyzing, i+1, len(toRemove), relPath)
		if err := removeFile(ctx, deps, relPath); err != nil {
			return errtax.Wrap(errtax.KindIO, "plan.Execute", err).WithDetail("path", relPath)
		}
	}

	// Pass 1: parse and chunk every file, feeding xref's per-file pass as we
	// go. CalledBy can't be resolved until every file has been seen, so
	// embedding is deferred to pass 2.
	parsed := make([]fileChunks, 0, len(p.FilesToIndex))
	for i, f := range p.FilesToIndex {
		report(progress, PhaseAnalyzing, i+1, len(p.FilesToIndex), f.RelPath)

		content, err := os.ReadFile(f.Path)
		if err != nil {
			// Per §4.7 failure semantics: skip this file, leave its file-index
			// entry unadvanced, keep going.
			continue
		}

		chunks, err := deps.Chunker.ChunkFile(ctx, chunk.FileInput{
			AbsPath: f.Path, RelPath: f.RelPath, Content: content, Language: f.Language,
		})
		if err != nil || len(chunks) == 0 {
			continue
		}

		if f.Language != "" {
			if tree, err := deps.Parser.Parse(ctx, content, f.Language); err == nil {
				deps.Xref.ProcessFile(f.RelPath, tree)
			}
		}

		parsed = append(parsed, fileChunks{file: f, chunks: chunks})
	}

	deps.Xref.Merge()
	definitionsByFQN := indexDefinitionsByFQN(deps.Xref.Definitions())

	// Pass 2: backfill Calls/CalledBy from the resolved graph, then embed,
	// upsert, and index.
	for i, pf := range parsed {
		report(progress, PhaseEmbedding, i+1, len(parsed), pf.file.RelPath)

		backfillCallGraph(pf.chunks, definitionsByFQN)

		if err := embedAndUpsert(ctx, deps, pf.file.RelPath, pf.chunks); err != nil {
			return errtax.Wrap(errtax.KindEmbedder, "plan.Execute", err).WithDetail("path", pf.file.RelPath)
		}

		indexChunks(ctx, deps, pf.chunks)

		deps.FileIndex.UpdateFile(fileindex.FileRecord{
			RelPath:     pf.file.RelPath,
			Hash:        pf.file.Hash,
			ModTime:     pf.file.ModTime,
			LastIndexed: pf.file.ModTime,
			ChunkCount:  len(pf.chunks),
		})
	}

	for _, relPath := range p.FilesToRemove {
		deps.FileIndex.RemoveFile(relPath)
	}

	report(progress, PhaseSaving, 0, 0, "")

	if err := deps.FileIndex.Save(); err != nil {
		return errtax.Wrap(errtax.KindIO, "plan.Execute", err)
	}
	if err := deps.Xref.Serialize(filepath.Join(deps.DataDir, "xref-graph.json")); err != nil {
		return errtax.Wrap(errtax.KindIO, "plan.Execute", err)
	}
	if err := deps.BM25.Serialize(filepath.Join(deps.DataDir, "bm25-index")); err != nil {
		return errtax.Wrap(errtax.KindIO, "plan.Execute", err)
	}
	if err := deps.Fuzzy.Serialize(filepath.Join(deps.DataDir, "fuzzy-index.json")); err != nil {
		return errtax.Wrap(errtax.KindIO, "plan.Execute", err)
	}

	logPlan(ctx, p)
	report(progress, PhaseComplete, 1, 1, "")
	return nil
}

// indexDefinitionsByFQN keys the resolved xref definitions by their FQN for
// O(1) lookup while backfilling chunks.
func indexDefinitionsByFQN(defs []*xref.Definition) map[string]*xref.Definition {
	byFQN := make(map[string]*xref.Definition, len(defs))
	for _, def := range defs {
		byFQN[def.FQN] = def
	}
	return byFQN
}

// backfillCallGraph fills in each chunk's Calls/CalledBy from the resolved
// xref definition sharing its FQN. A chunk's FQN is its dotted Scope plus
// Name, the same convention xref uses internally; split sub-chunks (named
// "<parent>_partN" by the chunker) strip that suffix before lookup since the
// xref definition was built from the parent node, not the sub-chunk.
func backfillCallGraph(chunks []*chunk.Chunk, definitionsByFQN map[string]*xref.Definition) {
	for _, c := range chunks {
		if c.Name == "" {
			continue
		}
		name := stripPartSuffix(c.Name)
		fqn := name
		if c.Scope != "" {
			fqn = c.Scope + "." + name
		}
		def, ok := definitionsByFQN[fqn]
		if !ok {
			continue
		}
		c.Calls = def.Calls
		c.CalledBy = def.CalledBy
	}
}

// stripPartSuffix removes the chunker's "_partN" sub-chunk suffix, if
// present, to recover the name the xref pass recorded for the parent node.
func stripPartSuffix(name string) string {
	idx := strings.LastIndex(name, "_part")
	if idx == -1 {
		return name
	}
	suffix := name[idx+len("_part"):]
	if suffix == "" {
		return name
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return name
		}
	}
	return name[:idx]
}

// removeFile drops every chunk belonging to relPath from all three
// retrieval indices.
func removeFile(ctx context.Context, deps Dependencies, relPath string) error {
	prefix := relPath + ":"
	if err := deps.BM25.RemoveDocumentsByPrefix(ctx, prefix); err != nil {
		return err
	}
	deps.Fuzzy.RemoveByPrefix(prefix)
	return deps.Vectors.DeleteByFilePath(ctx, relPath)
}

// embedAndUpsert embeds every chunk's index text in one batch and upserts
// the resulting vectors with their chunk metadata.
func embedAndUpsert(ctx context.Context, deps Dependencies, relPath string, chunks []*chunk.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.IndexText
	}

	vectors, err := deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			ID:            c.ID,
			FilePath:      c.AbsPath,
			RelativePath:  c.RelPath,
			Code:          c.Code,
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			Language:      c.Language,
			Type:          c.Kind,
			Name:          c.Name,
			Scope:         c.Scope,
			Docstring:     c.Docstring,
			TokenEstimate: c.Tokens,
			LastUpdated:   c.UpdatedAt,
		}
	}

	return deps.Vectors.Upsert(ctx, records, vectors)
}

// indexChunks feeds BM25 and fuzzy from the chunks just produced, carrying
// each chunk's canonical id through so the query fusion layer can join a
// BM25 or fuzzy hit back to the same chunk the vector store surfaces.
// An AddDocuments error is discarded here, neither logged nor returned;
// BM25/fuzzy failures don't hold up the rest of the run since both can be
// rebuilt from a subsequent full reindex.
func indexChunks(ctx context.Context, deps Dependencies, chunks []*chunk.Chunk) {
	docs := make([]bm25.Document, 0, len(chunks))
	var symbols []fuzzy.Symbol

	for _, c := range chunks {
		docID := fmt.Sprintf("%s:%d:%d", c.RelPath, c.StartLine, c.EndLine)
		docs = append(docs, bm25.Document{
			ID:      docID,
			ChunkID: c.ID,
			Text:    c.IndexText,
			Metadata: map[string]string{
				"relPath":  c.RelPath,
				"kind":     c.Kind,
				"name":     c.Name,
				"language": c.Language,
			},
		})

		if c.Name != "" && fuzzy.IsIndexable(fuzzy.Kind(c.Kind)) {
			symbols = append(symbols, fuzzy.Symbol{
				Name:     c.Name,
				Kind:     fuzzy.Kind(c.Kind),
				FilePath: c.AbsPath,
				RelPath:  c.RelPath,
				Line:     c.StartLine,
				Scope:    c.Scope,
				ChunkID:  c.ID,
			})
		}
	}

	_ = deps.BM25.AddDocuments(ctx, docs)
	deps.Fuzzy.AddAll(symbols)
}
