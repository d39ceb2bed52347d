package models

const (
	// ContextSeparator joins rendered context entries.
	ContextSeparator = "\n\n"
	ThinkTag         = `(?s)<think>.*?</think>`

	NoContextMessage = "I couldn't find any readable text in the documents for this matter. " +
		"The file may be a scanned image or an unsupported format. Try uploading a text-based copy."
	RetryLaterMessage = "Sorry, the assistant is unavailable right now. Please try again in a moment."
)

var (
	CaseSystemPrompt = `You are a legal intake assistant helping a law firm review a client matter.
Answer only from the document excerpts provided between <context> tags. Each excerpt is prefixed
with its source label in square brackets; cite the label when you rely on an excerpt. If the
excerpts do not contain the answer, say so plainly instead of guessing.`

	DocumentSystemPrompt = `You are a legal assistant answering questions about a single uploaded document.
Answer only from the excerpts provided between <context> tags and cite their labels. If the
excerpts do not contain the answer, say so plainly instead of guessing.`

	QuestionPromptTemplate = `<context>
%s
</context>

Question: %s`
)
