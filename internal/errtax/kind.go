// Package errtax provides the structured error taxonomy used across codeindex.
//
// Every component surfaces failures as a *Error carrying one of the Kind
// values below, so callers can branch on errors.Is / Kind matching rather
// than string comparison. The kinds and their propagation policy mirror the
// error handling design: ParseError and per-file IoError and
// UnsupportedLanguage recover locally (logged, operation continues);
// everything else is surfaced to the caller with a structured reason.
package errtax

// Kind classifies an error for propagation-policy decisions.
type Kind string

const (
	// KindConfig indicates malformed configuration or a schema mismatch.
	// Surfaced; never retried automatically.
	KindConfig Kind = "CONFIG"

	// KindIO indicates a transient or permanent filesystem/git failure.
	// Per-file IoError during a crawl is logged and the file is skipped;
	// per-index IoError on save fails the run with state unadvanced.
	KindIO Kind = "IO"

	// KindParse indicates a source syntax issue. Never surfaced to the
	// caller; recovered locally by falling back to block chunking.
	KindParse Kind = "PARSE"

	// KindNotInitialized indicates a query or upsert attempted before the
	// target component finished initializing. Surfaced to the caller.
	KindNotInitialized Kind = "NOT_INITIALIZED"

	// KindUnsupportedLanguage indicates an unknown file extension. Skipped
	// silently by the crawler/chunker.
	KindUnsupportedLanguage Kind = "UNSUPPORTED_LANGUAGE"

	// KindEmbedder indicates the external embedder failed or returned a
	// mismatched vector shape. The batch is retried once after backoff; a
	// second failure aborts the run with the file index unadvanced.
	KindEmbedder Kind = "EMBEDDER"

	// KindVectorStore indicates a persistence failure in the vector store.
	// Always bubbled up.
	KindVectorStore Kind = "VECTOR_STORE"

	// KindTaskNotFound indicates a task-store lookup precondition violation.
	KindTaskNotFound Kind = "TASK_NOT_FOUND"

	// KindParentNotFound indicates a task-store spawn referenced a missing
	// parent task.
	KindParentNotFound Kind = "PARENT_NOT_FOUND"

	// KindInternal covers defects that don't map to a specific taxonomy
	// entry above.
	KindInternal Kind = "INTERNAL"
)

// LocalRecovery reports whether errors of this kind should be handled by the
// component that produced them (logged and skipped) rather than surfaced to
// the caller.
func (k Kind) LocalRecovery() bool {
	switch k {
	case KindParse, KindUnsupportedLanguage:
		return true
	default:
		return false
	}
}
