package consultation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/medrag/models"
	"github.com/upb/medrag/services/providers"
)

func TestBuildSystemPrompt(t *testing.T) {
	docs := make([]*models.DocumentMatch, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, &models.DocumentMatch{
			Filename: fmt.Sprintf("doc%d.md", i),
			Content:  strings.Repeat("x", 400),
		})
	}

	t.Run("clinician mode", func(t *testing.T) {
		prompt := BuildSystemPrompt(nil, docs)

		assert.Contains(t, prompt, "healthcare professional")
		assert.NotContains(t, prompt, "Patient profile")
		assert.Contains(t, prompt, "1. doc0.md: "+strings.Repeat("x", 300)+"\n")
		assert.Contains(t, prompt, "3. doc2.md")
		assert.NotContains(t, prompt, "doc3.md")
		assert.NotContains(t, prompt, strings.Repeat("x", 301))
	})

	t.Run("patient mode lists profile", func(t *testing.T) {
		age := 61
		prompt := BuildSystemPrompt(&UserProfile{
			Age:         &age,
			Gender:      "female",
			Conditions:  []string{"hypertension", "asthma"},
			Medications: []string{"lisinopril"},
		}, nil)

		assert.Contains(t, prompt, "Patient profile")
		assert.Contains(t, prompt, "- Age: 61")
		assert.Contains(t, prompt, "- Gender: female")
		assert.Contains(t, prompt, "- Conditions: hypertension, asthma")
		assert.Contains(t, prompt, "- Medications: lisinopril")
		assert.Contains(t, prompt, "- Allergies: None reported")
		assert.Contains(t, prompt, "healthcare provider")
		assert.NotContains(t, prompt, "Relevant documents")
	})

	t.Run("missing age", func(t *testing.T) {
		prompt := BuildSystemPrompt(&UserProfile{}, nil)
		assert.Contains(t, prompt, "- Age: Not specified")
	})
}

func TestBuildMessages(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "t1"},
		{Role: "assistant", Content: "t2"},
		{Role: "user", Content: "t3"},
		{Role: "bot", Content: "t4"},
		{Role: "user", Content: "  "},
		{Role: "doctor", Content: "t6"},
		{Role: "ai", Content: "t7"},
	}

	msgs := BuildMessages("sys", history, "now?")

	require.Len(t, msgs, 6)
	assert.Equal(t, providers.Message{Role: providers.RoleSystem, Content: "sys"}, msgs[0])
	assert.Equal(t, providers.Message{Role: providers.RoleUser, Content: "t3"}, msgs[1])
	assert.Equal(t, providers.Message{Role: providers.RoleAssistant, Content: "t4"}, msgs[2])
	assert.Equal(t, providers.Message{Role: providers.RoleUser, Content: "t6"}, msgs[3])
	assert.Equal(t, providers.Message{Role: providers.RoleAssistant, Content: "t7"}, msgs[4])
	assert.Equal(t, providers.Message{Role: providers.RoleUser, Content: "now?"}, msgs[5])
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 200))
	assert.Equal(t, strings.Repeat("a", 200), excerpt(strings.Repeat("a", 200), 200))
	assert.Equal(t, strings.Repeat("é", 200)+"...", excerpt(strings.Repeat("é", 201), 200))
}

func TestTemplateGenerator(t *testing.T) {
	g := NewTemplateGenerator()
	ctx := context.Background()
	docs := []*models.DocumentMatch{{Filename: "a.md"}}

	tests := []struct {
		name    string
		in      *GenerateInput
		want    string
		wantNot string
	}{
		{name: "clinician with documents", in: &GenerateInput{Query: "q", Docs: docs}, want: "Based on the medical documents in your library, here's", wantNot: "health profile"},
		{name: "clinician without documents", in: &GenerateInput{Query: "q"}, want: "I don't have specific medical documents", wantNot: "health profile"},
		{name: "patient with documents", in: &GenerateInput{Query: "q", Docs: docs, Profile: &UserProfile{}}, want: "your health profile"},
		{name: "patient without documents", in: &GenerateInput{Query: "q", Profile: &UserProfile{}}, want: "Given your health profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := g.Generate(ctx, tt.in)
			require.NoError(t, err)
			assert.Contains(t, out.Text, tt.want)
			assert.Contains(t, out.Text, "healthcare professional")
			assert.Contains(t, out.Text, "'q'")
			if tt.wantNot != "" {
				assert.NotContains(t, out.Text, tt.wantNot)
			}
			assert.Equal(t, templateModel, out.Model)
			assert.Equal(t, len(strings.Fields(out.Text)), out.TokensUsed)
		})
	}

	assert.True(t, g.Retrieves(nil))
	assert.True(t, g.Retrieves(&UserProfile{}))
}

func TestLLMGenerator_Request(t *testing.T) {
	provider := new(MockChatProvider)
	var captured *providers.ChatRequest
	provider.On("ChatCompletion", context.Background(), mockAnyRequest(&captured)).
		Return(&providers.ChatResponse{
			Choices: []providers.Choice{{Message: providers.Message{Content: "  answer  "}}},
			Usage:   providers.Usage{TotalTokens: 12},
		}, nil)

	g := NewLLMGenerator(provider, "gpt-4o-mini", 0)
	out, err := g.Generate(context.Background(), &GenerateInput{UserID: "u1", Query: "q", Temperature: 0.3})
	require.NoError(t, err)

	assert.Equal(t, "answer", out.Text)
	assert.Equal(t, "gpt-4o-mini", out.Model)
	assert.Equal(t, 12, out.TokensUsed)

	require.NotNil(t, captured)
	assert.Equal(t, 500, captured.MaxTokens)
	assert.Equal(t, 0.3, captured.Temperature)
	assert.Equal(t, "u1", captured.User)
	assert.False(t, g.Retrieves(&UserProfile{}))
	assert.True(t, g.Retrieves(nil))
}

func TestLLMGenerator_EmptyCompletion(t *testing.T) {
	provider := new(MockChatProvider)
	provider.On("ChatCompletion", context.Background(), mockAnyRequest(nil)).
		Return(&providers.ChatResponse{}, nil)

	_, err := NewLLMGenerator(provider, "m", 500).Generate(context.Background(), &GenerateInput{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty completion")
}
