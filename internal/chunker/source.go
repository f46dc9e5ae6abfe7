package chunker

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"

	"reviewcore/internal/logging"
)

// SourceChunk is one function/method-level unit of source code extracted
// for project-tier embedding, as opposed to chunker.Chunk's dated
// KNOWLEDGE.md entries.
type SourceChunk struct {
	SourceFile string
	StartLine  int
	EndLine    int
	Content    string
}

// fallbackWindowLines is the line-count window used for source files whose
// language has no tree-sitter grammar wired in.
const fallbackWindowLines = 40

var functionNodeTypes = map[string]bool{
	"function_declaration": true, // Go
	"method_declaration":   true, // Go
	"function_definition":  true, // Python
}

// ChunkSource splits a source file into function/method-level chunks using
// a tree-sitter grammar when one is available for its extension, falling
// back to fixed-size line windows otherwise. Never returns an error: an
// unparseable file degrades to the fallback rather than dropping the file.
func ChunkSource(path, content string) []SourceChunk {
	lang := languageFor(path)
	if lang == nil {
		return windowChunks(path, content)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil {
		logging.ChunkerWarn("tree-sitter parse failed for %s, falling back to windowed chunking: %v", path, err)
		return windowChunks(path, content)
	}
	defer tree.Close()

	var chunks []SourceChunk
	walk(tree.RootNode(), path, content, &chunks)

	if len(chunks) == 0 {
		return windowChunks(path, content)
	}
	return chunks
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	default:
		return nil
	}
}

func walk(n *sitter.Node, path, content string, chunks *[]SourceChunk) {
	if n == nil {
		return
	}
	if functionNodeTypes[n.Type()] {
		*chunks = append(*chunks, SourceChunk{
			SourceFile: path,
			StartLine:  int(n.StartPoint().Row) + 1,
			EndLine:    int(n.EndPoint().Row) + 1,
			Content:    n.Content([]byte(content)),
		})
		return // don't descend into nested functions as separate chunks
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), path, content, chunks)
	}
}

func windowChunks(path, content string) []SourceChunk {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}
	var chunks []SourceChunk
	for start := 0; start < len(lines); start += fallbackWindowLines {
		end := start + fallbackWindowLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, SourceChunk{
			SourceFile: path,
			StartLine:  start + 1,
			EndLine:    end,
			Content:    text,
		})
	}
	return chunks
}
