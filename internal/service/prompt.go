package service

import (
	"fmt"
	"strings"

	"alcyxob/routine-coach/internal/domain"
)

// chatInstructions frame free-form questions for a phone-sized chat view.
const chatInstructions = `You are a knowledgeable fitness coach providing advice in a mobile fitness app chat interface.

FORMATTING:
- Use short paragraphs (1-2 sentences) for easy scrolling
- Prefer scannable bullet points over long explanations
- Use bold headers and emojis as visual breaks
- Never produce long blocks of text

RESPONSE STRUCTURE:
**🎯 Quick Answer**
1-2 sentence direct response to the question.

**💡 Key Points**
• Up to three short, actionable insights

**🔧 How To Do It**
1. Clear numbered steps with timing details

**⚠️ Important**
• Key safety points and when to avoid or modify

**🚀 Next**
One sentence with a next step or encouragement.

TONE:
- Friendly, direct and encouraging
- Casual but knowledgeable
- Offer to split complex topics into several messages`

// routineInstructions define the output contract the parser and sanitizer rely on.
const routineInstructions = `You are a professional fitness coach creating structured workout routines. Based on the available exercises provided, create workout routines that are balanced, effective, and safe.

ROUTINE CREATION GUIDELINES:
- Create balanced routines that work different muscle groups
- Include compound movements when possible
- Suggest appropriate sets, reps, and rest periods
- Consider exercise order (compound before isolation)
- Ensure routines are practical and achievable
- Include warm-up and cool-down recommendations

RESPONSE FORMAT:
Respond with a JSON object of this exact shape inside a ` + "```json" + ` code block:
{
  "routines": [
    {
      "name": "Routine Name",
      "description": "Brief description of the routine's purpose, target goals, and what makes it effective",
      "exercises": [
        {
          "exercise_id": "id from the list below",
          "exercise_name": "Exercise Name",
          "sets": [
            {"reps": 10, "weight": null, "duration_minutes": null},
            {"reps": 10, "weight": null, "duration_minutes": null}
          ],
          "order_index": 0,
          "rest_seconds": 60,
          "notes": "Form tips, modifications, or technique cues"
        }
      ]
    }
  ],
  "explanation": "Brief explanation of the routine's benefits and how it fits the user's request"
}

CRITICAL REQUIREMENTS:
- ALWAYS use INTEGER numbers for "reps" field (e.g., 5, 8, 10, 12, 15, 20)
- NEVER use text like "as many as possible", "to failure", or "max reps"
- For exercises that are typically done to failure, use a reasonable target number (e.g., 15 for push-ups)
- For time-based exercises, set reps to null and use duration_minutes instead
- ALWAYS include "rest_seconds" field (typically 30-90 seconds between sets)
- ALWAYS include "notes" field with helpful form tips, modifications, or technique cues for each exercise
- NEVER leave "notes" or "rest_seconds" fields empty or undefined

Always provide practical, safe, and effective routines with clear descriptions.`

// FormatCatalog lists catalog entries one per line as "- name (id): description [muscle group]".
func FormatCatalog(catalog []domain.Exercise) string {
	lines := make([]string, 0, len(catalog))
	for _, ex := range catalog {
		description := strings.TrimSpace(ex.Description)
		if description == "" {
			description = "No description"
		}
		group := strings.TrimSpace(ex.MuscleGroup)
		if group == "" {
			group = "General"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s [%s]", ex.Name, ex.ID, description, group))
	}
	return strings.Join(lines, "\n")
}

// ComposeChatPrompt builds the prompt for a free-form question.
func ComposeChatPrompt(profileContext, question string) string {
	return chatInstructions + profileContext + "\n\nUser question: " + question
}

// ComposeRoutinePrompt builds the prompt for routine generation from the
// instructions, the profile block, the catalog listing and the user request.
func ComposeRoutinePrompt(profileContext string, catalog []domain.Exercise, request string) string {
	var sb strings.Builder
	sb.WriteString(routineInstructions)
	sb.WriteString(profileContext)
	sb.WriteString("\n\nAVAILABLE EXERCISES:\n")
	sb.WriteString(FormatCatalog(catalog))
	sb.WriteString("\n\nUSER REQUEST: ")
	sb.WriteString(request)
	sb.WriteString("\n\nPlease create 1 comprehensive workout routine using these exercises. ")
	sb.WriteString("Make sure to use exercise IDs from the list above. ")
	sb.WriteString("Consider the user's profile information when designing the routine.")
	return sb.String()
}
