package consultation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/medrag/services"
)

func TestDefaultRegistry(t *testing.T) {
	t.Run("openai agent present without a provider", func(t *testing.T) {
		r, err := DefaultRegistry(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{AgentLLM, AgentTemplate}, r.List())

		g, err := r.Get(AgentLLM)
		require.NoError(t, err)

		_, err = g.Generate(context.Background(), &GenerateInput{UserID: "u1", Query: "metformin"})
		assert.ErrorIs(t, err, services.ErrProviderNotConfigured)
	})

	t.Run("empty agent resolves to the fallback", func(t *testing.T) {
		r, err := DefaultRegistry(nil)
		require.NoError(t, err)

		g, err := r.Get("")
		require.NoError(t, err)
		assert.Equal(t, AgentTemplate, g.ID())
	})

	t.Run("unknown agent is a validation error", func(t *testing.T) {
		r, err := DefaultRegistry(nil)
		require.NoError(t, err)

		_, err = r.Get("gpt-9")
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name      string
		generator Generator
		wantErr   error
	}{
		{name: "first registration", generator: NewTemplateGenerator()},
		{name: "duplicate id", generator: NewTemplateGenerator(), wantErr: ErrGeneratorAlreadyRegistered},
	}

	r := NewRegistry(AgentTemplate)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.generator)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Error(t, r.Register(nil))
}
