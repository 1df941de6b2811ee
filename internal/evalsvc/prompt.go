package evalsvc

import (
	"fmt"
	"math"
	"strings"
)

const systemPrompt = "You are a helpful assistant that obeys the instructions given and provides the correct answers for any questions provided."

const rectification = "The answer you provided is incorrect. I have attached the question and the steps to find the correct answer for the question. Please perform them and report the correct answer."

// costPerToken is the flat per-token dollar rate recorded in analytics.
const costPerToken = 0.000005

// generateRestriction caps the model's verbosity based on the expected
// answer: purely numeric answers get a numbers-only instruction, long
// answers get the generic one, and short textual answers get a word-count
// bound.
func generateRestriction(finalAnswer string) string {
	words := strings.Fields(finalAnswer)
	switch {
	case isAllDigits(finalAnswer) && len(words) <= 10:
		return "Provide only numerical values in your response. No yapping."
	case len(words) > 10:
		return "No yapping."
	default:
		return fmt.Sprintf("Restrict your response to %d words only. No yapping.", len(words))
	}
}

func isAllDigits(s string) bool {
	stripped := strings.ReplaceAll(s, " ", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildQuestion assembles the full prompt text. A non-empty updatedSteps
// means the user is retrying with corrected solution steps, so the
// rectification preamble and the steps go in front of the question.
func buildQuestion(question, finalAnswer, updatedSteps string) string {
	restriction := generateRestriction(finalAnswer)
	if updatedSteps == "" {
		return strings.TrimSpace(question + " " + restriction)
	}
	return strings.TrimSpace(fmt.Sprintf("%s Question: %s Steps: %s %s",
		rectification, question, updatedSteps, restriction))
}

// estimateTokens approximates the model's tokenizer at four characters per
// token, which is close enough for cost accounting.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / 4))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
