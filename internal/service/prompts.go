package service

import (
	"classtutor_backend/internal/model"
	"fmt"
	"strings"
)

// 提示词集中在这里维护，措辞改动不应散落到各个服务里。

func buildExtractionPrompt(title string) string {
	var sb strings.Builder
	sb.WriteString("You are an assignment digitizer for a classroom platform. ")
	sb.WriteString("The attached documents contain a homework assignment")
	if title != "" {
		sb.WriteString(fmt.Sprintf(" titled %q", title))
	}
	sb.WriteString(".\n\n")
	sb.WriteString("Extract EVERY question in document order. For each question output:\n")
	sb.WriteString("- questionNumber: the number as printed, keeping lettered sub-parts (e.g. \"16a\")\n")
	sb.WriteString("- questionType: one of multiple_choice, single_value, short_answer, free_response, skipped\n")
	sb.WriteString("  (use skipped for items that are instructions or cannot be answered from text)\n")
	sb.WriteString("- content: the full question text\n")
	sb.WriteString("- answerOptionsMCQ: for multiple_choice only, the option texts in printed order\n")
	sb.WriteString("- instructions: any per-question instructions, else an empty string\n\n")
	sb.WriteString("Respond ONLY with a JSON array of these objects. No commentary.\n")
	return sb.String()
}

func buildAnswerPrompt(q *model.Question, feedback string) string {
	var sb strings.Builder
	sb.WriteString("You are answering one question from the attached assignment, using the attached class notes when they cover it.\n\n")
	sb.WriteString("QUESTION " + q.QuestionNumber + ": " + q.Content + "\n\n")

	switch q.QuestionType {
	case model.TypeMultipleChoice:
		sb.WriteString("OPTIONS:\n")
		for i, opt := range q.AnswerOptions {
			sb.WriteString(fmt.Sprintf("%c. %s\n", 'A'+i, opt))
		}
		sb.WriteString("\nThe answer MUST identify exactly one option.\n")
	case model.TypeFreeResponse:
		sb.WriteString("This is a free-response question; the answer may be a list of points.\n")
	case model.TypeSingleValue:
		sb.WriteString("This question expects a single value; give just that value.\n")
	}

	if q.Instructions != "" {
		sb.WriteString("\nQUESTION INSTRUCTIONS: " + q.Instructions + "\n")
	}
	if feedback != "" {
		sb.WriteString("\nTEACHER FEEDBACK on the previous answer, address it explicitly:\n" + feedback + "\n")
	}

	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"answer": <string or array of strings>, "keyPoints": [<short strings a student must mention>], "source": "notes" or [<urls>]}`)
	sb.WriteString("\nUse \"notes\" as source when the class notes cover the answer; otherwise cite the web pages you relied on.\n")
	return sb.String()
}

func buildTutorSystemPrompt(q *model.Question) string {
	var sb strings.Builder
	sb.WriteString("You are a patient tutor helping a student work through one assignment question. ")
	sb.WriteString("Guide with hints and follow-up questions; never hand over the final answer outright.\n\n")
	if q != nil {
		sb.WriteString("QUESTION: " + q.Content + "\n")
		if len(q.AnswerOptions) > 0 {
			sb.WriteString("OPTIONS: " + strings.Join(q.AnswerOptions, " / ") + "\n")
		}
		if !q.Answer.Empty() {
			sb.WriteString("REFERENCE ANSWER (do not reveal directly): " + q.Answer.Display() + "\n")
		}
		if len(q.KeyPoints) > 0 {
			sb.WriteString("KEY POINTS: " + strings.Join(q.KeyPoints, "; ") + "\n")
		}
	}
	sb.WriteString("\nStay on this question. If asked something unrelated, politely steer back.\n")
	return sb.String()
}
