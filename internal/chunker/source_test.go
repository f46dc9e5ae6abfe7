package chunker

import (
	"strings"
	"testing"
)

const sampleGo = `package example

func Add(a, b int) int {
	return a + b
}

func Sub(a, b int) int {
	return a - b
}
`

func TestChunkSourceSplitsGoFunctions(t *testing.T) {
	chunks := ChunkSource("example.go", sampleGo)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 function chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "func Add") {
		t.Fatalf("expected first chunk to contain Add, got %q", chunks[0].Content)
	}
	if !strings.Contains(chunks[1].Content, "func Sub") {
		t.Fatalf("expected second chunk to contain Sub, got %q", chunks[1].Content)
	}
	if chunks[0].StartLine != 3 {
		t.Fatalf("expected Add to start at line 3, got %d", chunks[0].StartLine)
	}
}

const samplePython = `def add(a, b):
    return a + b


def sub(a, b):
    return a - b
`

func TestChunkSourceSplitsPythonFunctions(t *testing.T) {
	chunks := ChunkSource("example.py", samplePython)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 function chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "def add") {
		t.Fatalf("expected first chunk to contain add, got %q", chunks[0].Content)
	}
}

func TestChunkSourceFallsBackToWindowsForUnknownLanguage(t *testing.T) {
	content := strings.Repeat("line\n", fallbackWindowLines*2+5)
	chunks := ChunkSource("example.rb", content)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 windowed chunks, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != fallbackWindowLines {
		t.Fatalf("unexpected first window bounds: %+v", chunks[0])
	}
}

func TestChunkSourceEmptyContent(t *testing.T) {
	if chunks := ChunkSource("empty.go", ""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty content, got %d", len(chunks))
	}
}
