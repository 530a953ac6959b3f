package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
	"github.com/AhmedEldessouki1982/cdns/pkg/llm"
)

func TestNewEmbedder(t *testing.T) {
	e, err := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey: "test-key",
		Model:  "text-embedding-3-small",
	})
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestEmbedder_EmptyText(t *testing.T) {
	e, err := llm.NewEmbedder(llm.EmbedderConfig{APIKey: "test-key"})
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "   \n\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EmbedText(context.Background(), tt.text)
			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
		})
	}
}
