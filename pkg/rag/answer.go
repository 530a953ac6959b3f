package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/AhmedEldessouki1982/cdns/internal/models"
	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// insufficientContext is the exact sentence the prompt instructs the
// model to reply with when the context cannot support an answer. It is
// also substituted when the provider returns no text at all.
const insufficientContext = "Not enough information."

const answerTemperature = 0.2

// Answer retrieves the top chunks for the question and asks the
// completion provider to answer strictly from them. The retrieved
// chunks come back as citations in retrieval order. Provider failures
// propagate to the caller unmodified.
func (p *Pipeline) Answer(ctx context.Context, question string) (models.Answer, error) {
	chunks, err := p.Retrieve(ctx, question, p.config.TopK, nil)
	if err != nil {
		return models.Answer{}, err
	}

	prompt := buildPrompt(question, chunks)
	text, err := p.chat.Complete(ctx, []types.Message{{Role: "user", Content: prompt}}, answerTemperature)
	if err != nil {
		return models.Answer{}, err
	}
	if text == "" {
		text = insufficientContext
	}

	citations := chunks
	if citations == nil {
		citations = []models.RetrievedChunk{}
	}
	return models.Answer{Answer: text, Citations: citations}, nil
}

func buildPrompt(question string, chunks []models.RetrievedChunk) string {
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines = append(lines, fmt.Sprintf("- [%s:%s] %s", c.SourceTable, c.SourcePK, c.Content))
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are a precise assistant for technical operations.

Use ONLY the context below. If the context is insufficient,
reply exactly: %q

Question:
%s

Context:
%s
`, insufficientContext, question, strings.Join(lines, "\n")))
}
