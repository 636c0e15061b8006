package rag

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/hyperjump/kotae/internal/models"
)

// DefaultPromptTemplate stuffs all retrieved chunks into a single prompt.
const DefaultPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.Context}}

Question: {{.Question}}
Helpful Answer:`

// PromptData is the value the prompt template is executed with.
type PromptData struct {
	Context  string
	Question string
	Chunks   []models.ScoredChunk
}

func parsePrompt(text string) (*template.Template, error) {
	if text == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &models.ConfigurationError{Msg: "invalid prompt template", Err: err}
	}
	return tmpl, nil
}

// BuildPrompt renders tmpl with the retrieved chunks, most similar first, separated by blank lines.
func BuildPrompt(tmpl *template.Template, chunks []models.ScoredChunk, question string) (string, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Text
	}
	var b strings.Builder
	err := tmpl.Execute(&b, PromptData{
		Context:  strings.Join(texts, "\n\n"),
		Question: question,
		Chunks:   chunks,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
