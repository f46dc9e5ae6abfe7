package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"reviewcore/internal/logging"
	"reviewcore/internal/validator"
	"reviewcore/internal/vectorstore"
)

// Tier identifies which knowledge store produced a result.
type Tier string

const (
	TierGlobal  Tier = "global"
	TierProject Tier = "project"
)

// TaggedResult is a retrieved chunk tagged with the tier it came from.
type TaggedResult struct {
	ChunkID    string
	Text       string
	Score      float64
	SourceTier Tier
}

// RetrieverConfig configures the two-tier Knowledge Retriever.
type RetrieverConfig struct {
	TokenBudget int
	TopK        int
	MinScore    float64
}

// Retriever merges results from a global (cross-project) engine and a
// project-local in-memory index, tagging each with its source tier.
type Retriever struct {
	cfg     RetrieverConfig
	global  *Engine
	project *vectorstore.ProjectIndex
}

// NewRetriever builds a Retriever from already-opened tiers. Either tier may
// be nil; the caller opens an engine only for a tier whose store exists on
// disk and passes nil for the other.
func NewRetriever(cfg RetrieverConfig, global *Engine, project *vectorstore.ProjectIndex) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Retriever{cfg: cfg, global: global, project: project}
}

var (
	diffPathRe      = regexp.MustCompile(`^(?:---|\+\+\+)\s+[ab]/(\S+)`)
	pyDefOrClassRe  = regexp.MustCompile(`^\+\s*(?:def|class)\s+(\w+)`)
	jsFunctionRe    = regexp.MustCompile(`^\+\s*function\s+(\w+)`)
	importModuleRe  = regexp.MustCompile(`^\+\s*(?:import|from)\s+([\w./]+)`)
)

// deriveQuery extracts a compact query string from a unified diff: file
// paths, Python def/class names, JS function names, and imported module
// names from added lines, in the order they appear in the diff. Falls back
// to the raw diff text if nothing matched.
func deriveQuery(diffContext string) string {
	var terms []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			terms = append(terms, s)
		}
	}

	for _, line := range strings.Split(diffContext, "\n") {
		if m := diffPathRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
		if m := pyDefOrClassRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
		if m := jsFunctionRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
		if m := importModuleRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
	}

	if len(terms) == 0 {
		return strings.TrimSpace(diffContext)
	}
	return strings.Join(terms, " ")
}

// Retrieve runs the two-tier retrieval pipeline for reviewerID against
// diffContext: derive a query, fetch top-k from each available tier, merge
// by chunk id (retaining the higher score), drop below-threshold entries,
// sort by score descending, and truncate to top-k.
func (r *Retriever) Retrieve(ctx context.Context, reviewerID, diffContext string, topK int) []TaggedResult {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	query := deriveQuery(diffContext)
	if strings.TrimSpace(query) == "" {
		return nil
	}

	merged := make(map[string]TaggedResult)

	if r.global != nil {
		results, err := r.global.Query(ctx, reviewerID, query, topK)
		if err != nil {
			logging.RAGWarn("global tier query failed: %v", err)
		}
		for _, res := range results {
			id := chunkID(res.Chunk)
			if existing, ok := merged[id]; !ok || res.Similarity > existing.Score {
				merged[id] = TaggedResult{ChunkID: id, Text: res.Chunk.Content, Score: res.Similarity, SourceTier: TierGlobal}
			}
		}
	}

	if r.project != nil {
		results, err := r.project.Search(ctx, query, topK)
		if err != nil {
			logging.RAGWarn("project tier query failed: %v", err)
		}
		for _, res := range results {
			id := chunkID(res.Chunk)
			if existing, ok := merged[id]; !ok || res.Similarity > existing.Score {
				merged[id] = TaggedResult{ChunkID: id, Text: res.Chunk.Content, Score: res.Similarity, SourceTier: TierProject}
			}
		}
	}

	var out []TaggedResult
	for _, tr := range merged {
		if tr.Score >= r.cfg.MinScore {
			out = append(out, tr)
		}
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score > out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// chunkID derives the content-addressed id reviewer_id:section:date:source
// chunks carry in Metadata (set by Engine.Index), normalizing text the same
// way before hashing so re-indexing the same entry yields the same id. Chunks
// without that metadata (e.g. project-tier source code chunks, which have no
// reviewer/section/date of their own) fall back to a source+store-id key.
func chunkID(c vectorstore.KnowledgeChunk) string {
	reviewerID, _ := c.Metadata["reviewer_id"].(string)
	section, _ := c.Metadata["section"].(string)
	date, _ := c.Metadata["date"].(string)
	source, _ := c.Metadata["source"].(string)
	if reviewerID == "" || section == "" || date == "" || source == "" {
		return fmt.Sprintf("%s:%d", c.SourceFile, c.ID)
	}

	normalizedText := strings.Join(strings.Fields(c.Content), " ")
	raw := fmt.Sprintf("%s:%s:%s:%s:%s", reviewerID, section, date, source, normalizedText)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// FormatKnowledgeSection renders a "## Relevant Knowledge" markdown section
// from retrieval results, stopping before any line whose inclusion would
// exceed tokenBudget*4 characters (a conservative 4-char-per-token proxy).
// A zero budget or empty results yield "".
func FormatKnowledgeSection(results []TaggedResult, tokenBudget int) string {
	if tokenBudget <= 0 || len(results) == 0 {
		return ""
	}

	maxChars := tokenBudget * 4
	var sb strings.Builder
	header := "## Relevant Knowledge\n\n"
	sb.WriteString(header)

	for _, r := range results {
		line := fmt.Sprintf("- [%s] %s\n", r.SourceTier, r.Text)
		if sb.Len()+len(line) > maxChars {
			break
		}
		sb.WriteString(line)
	}

	if sb.String() == header {
		return ""
	}
	return sb.String()
}

// FormatForReviewer retrieves and formats the knowledge section for one
// reviewer/diff pair, satisfying engine.KnowledgeRetriever.
func (r *Retriever) FormatForReviewer(reviewerID, diffContent string) string {
	results := r.Retrieve(context.Background(), reviewerID, diffContent, r.cfg.TopK)
	return FormatKnowledgeSection(results, r.cfg.TokenBudget)
}

// searchAdapter satisfies validator.Retriever for the historical layer,
// running the full two-tier Retrieve (global and project merged) as the
// historical knowledge source.
type searchAdapter struct {
	r          *Retriever
	reviewerID string
}

// AsValidatorRetriever adapts this Retriever to the narrow interface the
// Finding Validator's historical layer expects.
func (r *Retriever) AsValidatorRetriever(reviewerID string) validator.Retriever {
	return &searchAdapter{r: r, reviewerID: reviewerID}
}

func (s *searchAdapter) Search(ctx context.Context, query string, topK int) ([]validator.RetrievedChunk, error) {
	tagged := s.r.Retrieve(ctx, s.reviewerID, query, topK)
	out := make([]validator.RetrievedChunk, 0, len(tagged))
	for _, t := range tagged {
		out = append(out, validator.RetrievedChunk{Text: t.Text})
	}
	return out, nil
}
