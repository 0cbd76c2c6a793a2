package consultation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/upb/medrag/models"
	"github.com/upb/medrag/services/providers"
)

const (
	promptDocLimit    = 3
	promptDocChars    = 300
	historyTurnLimit  = 5
	notSpecifiedValue = "Not specified"
)

const patientInstruction = `You are a careful medical information assistant speaking directly with a patient.
Personalize your answer using the patient profile below, taking their conditions, medications and allergies into account.
Use plain language. Never diagnose, and always encourage the patient to confirm decisions with their healthcare provider.`

const clinicianInstruction = `You are a medical information assistant supporting a healthcare professional.
Provide general, evidence-based guidance with appropriate clinical terminology.
Do not personalize the answer to a specific patient and note where clinical judgment is required.`

// BuildSystemPrompt renders the system instruction for a generation.
// At most three documents are included, each cut to its first 300 characters.
func BuildSystemPrompt(profile *UserProfile, docs []*models.DocumentMatch) string {
	var b strings.Builder

	if profile != nil {
		b.WriteString(patientInstruction)
		b.WriteString("\n\nPatient profile:\n")
		writeProfile(&b, profile)
	} else {
		b.WriteString(clinicianInstruction)
	}

	if len(docs) > 0 {
		b.WriteString("\n\nRelevant documents from the user's library:\n")
		for i, doc := range docs {
			if i == promptDocLimit {
				break
			}
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, doc.Filename, truncateRunes(doc.Content, promptDocChars))
		}
	}

	return b.String()
}

func writeProfile(b *strings.Builder, p *UserProfile) {
	age := notSpecifiedValue
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	fmt.Fprintf(b, "- Age: %s\n", age)
	fmt.Fprintf(b, "- Gender: %s\n", orNotSpecified(p.Gender))
	fmt.Fprintf(b, "- Conditions: %s\n", joinOrNone(p.Conditions))
	fmt.Fprintf(b, "- Medications: %s\n", joinOrNone(p.Medications))
	fmt.Fprintf(b, "- Allergies: %s\n", joinOrNone(p.Allergies))
}

// BuildMessages assembles the chat transcript: system prompt, the last five
// history turns, then the query.
func BuildMessages(system string, history []Turn, query string) []providers.Message {
	if len(history) > historyTurnLimit {
		history = history[len(history)-historyTurnLimit:]
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: system})
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, providers.Message{Role: historyRole(turn.Role), Content: turn.Content})
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: query})
	return messages
}

// historyRole maps free-form roles onto user/assistant
func historyRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "ai", "bot", "model":
		return providers.RoleAssistant
	default:
		return providers.RoleUser
	}
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecifiedValue
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None reported"
	}
	return strings.Join(items, ", ")
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// excerpt cuts s to n runes and marks the cut with "..."
func excerpt(s string, n int) string {
	cut := truncateRunes(s, n)
	if len(cut) < len(s) {
		return cut + "..."
	}
	return s
}
