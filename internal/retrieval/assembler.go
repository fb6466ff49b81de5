package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// blockDelimiter separates document blocks in the assembled context. The
// generation prompt tells the model to cite "Document N", so the block
// layout is a contract with the prompt template below.
const blockDelimiter = "\n---\n"

// AssembleContext formats the surviving results into one labeled block per
// record: 1-based index, source and page, cluster id (or "not clustered"),
// relevance to three decimals, and the full text.
func AssembleContext(result rag.RetrievalResult) string {
	blocks := make([]string, 0, len(result.Results))
	for i, s := range result.Results {
		cluster := "not clustered"
		if s.Record.Metadata.Clustered() {
			cluster = strconv.Itoa(s.Record.Metadata.ClusterID)
		}
		blocks = append(blocks, fmt.Sprintf(
			"[Document %d]\nSource: %s (Page %d, Cluster %s)\nRelevance Score: %.3f\nContent: %s\n",
			i+1,
			s.Record.Metadata.Source,
			s.Record.Metadata.Page,
			cluster,
			s.Relevance,
			s.Record.Text,
		))
	}
	return strings.Join(blocks, blockDelimiter)
}

// promptTemplate wraps the assembled context and the user question into the
// single string handed to the generator.
const promptTemplate = `You are a helpful AI assistant that answers questions based on the provided document context.

CONTEXT FROM DOCUMENTS:
%s

USER QUESTION: %s

Please provide a comprehensive answer based on the context above. If the context doesn't contain enough information to fully answer the question, say so and provide what information is available. Always cite which documents you're referencing (e.g., "According to Document 1...").

ANSWER:`

// BuildPrompt combines an assembled context and the user's question into
// the generation prompt. The assembled context is the generator's only view
// of the stored documents.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}
