package pipeline

import (
	"fmt"
	"strings"
)

const classifyTemplate = `Classify the user message into exactly one of these categories:

casual - a greeting or small talk that needs no factual lookup
history_question - answerable from the previous conversation alone
retrieval_question - needs the knowledge base or external information

%sUser message: %s

Reply with exactly one category name.`

const historyCheckTemplate = `Decide whether the previous conversation alone fully answers the user's question.

%sUser question: %s

If it does, reply exactly:
YES: <the answer>

If it does not, reply exactly:
NO`

const sufficiencyTemplate = `Judge whether the retrieved documents contain enough information to answer the question.

%sRetrieved documents:
%s
Question: %s

Reply with exactly one word: yes or no.`

const casualTemplate = `You are a friendly assistant having a relaxed conversation.

%sUser: %s

Reply naturally and briefly.`

const memoryTemplate = `The user asked: %s

The answer, found in the previous conversation, is: %s

%sReply to the user, phrasing this answer naturally.`

const augmentTemplate = `Using the information contained in the context,
give a comprehensive answer to the question.
Respond only to the question asked, response should be concise and relevant to the question.
Provide the number of the source document used.
If the answer cannot be deduced from the context, say that no relevant information was found instead of making one up.

%s## RETRIEVED CONTEXT:
%s
## USER QUESTION:
%s
`

func classifyPrompt(req Request) string {
	return fmt.Sprintf(classifyTemplate, contextSection(req.ConversationContext), req.UserQuery)
}

func historyCheckPrompt(req Request) string {
	return fmt.Sprintf(historyCheckTemplate, contextSection(req.ConversationContext), req.UserQuery)
}

func sufficiencyPrompt(req Request, local []Evidence) string {
	return fmt.Sprintf(sufficiencyTemplate, contextSection(req.ConversationContext), renderEvidence(local), req.UserQuery)
}

func casualPrompt(req Request) string {
	return fmt.Sprintf(casualTemplate, contextSection(req.ConversationContext), req.UserQuery)
}

func memoryPrompt(req Request, answer string) string {
	return fmt.Sprintf(memoryTemplate, req.UserQuery, answer, contextSection(req.ConversationContext))
}

func augmentedPrompt(req Request, combined []Evidence) string {
	return fmt.Sprintf(augmentTemplate, contextSection(req.ConversationContext), renderEvidence(combined), req.UserQuery)
}

// contextSection renders the pre-formatted transcript followed by a
// blank line, or nothing when the context is empty.
func contextSection(context string) string {
	if context == "" {
		return ""
	}
	return context + "\n\n"
}

// renderEvidence formats evidence as numbered blocks: local items carry
// their relevance score, web items their source URL.
func renderEvidence(items []Evidence) string {
	if len(items) == 0 {
		return "No relevant documents found in the knowledge base.\n"
	}

	var b strings.Builder
	for i, ev := range items {
		title := ev.Title
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		if ev.Origin == OriginWeb {
			fmt.Fprintf(&b, "\n--- Document %d: %s (Source: %s) ---\n%s\n", i+1, title, ev.SourceURL, ev.Content)
		} else {
			fmt.Fprintf(&b, "\n--- Document %d: %s (Relevance: %.3f) ---\n%s\n", i+1, title, ev.Score, ev.Content)
		}
	}
	return b.String()
}
