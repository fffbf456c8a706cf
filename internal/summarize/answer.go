package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/llm"
	"deskfix/internal/types"
)

// NoDirectAnswer is the terminal fallback when nothing could answer the
// question.
const NoDirectAnswer = "I couldn't find a direct answer to your question. Please rephrase it or contact support."

const answerSystemPrompt = `You are a Windows desktop support technician answering a user's question.
Use only the diagnostic output and reference material below. If they do not
contain the answer, say so plainly. Keep the answer to a few sentences and do
not recommend third-party software.`

// answerRoute maps question keywords to one extractor. Routes are tried in
// order; the first whose keywords match and whose extractor yields text wins.
type answerRoute struct {
	keywords []string
	extract  func([]types.CommandResult) string
}

var answerRoutes = []answerRoute{
	{[]string{"build"}, OSBuild},
	{[]string{"ip address", "my ip"}, IPAddress},
	{[]string{"version", "which windows", "what windows"}, OSVersion},
	{[]string{"cpu", "processor"}, CPUName},
	{[]string{"ram", "memory"}, MemoryTotals},
	{[]string{"disk", "storage", "space", "drive"}, DiskUsage},
	{[]string{"system details", "system info", "specs", "about my"}, SystemDetails},
}

// Answerer resolves informational questions from diagnostic output, falling
// back to evidence-based synthesis when no extractor matches.
type Answerer struct {
	client llm.Client
	logger *zap.Logger
}

func NewAnswerer(client llm.Client, logger *zap.Logger) *Answerer {
	if client == nil {
		client = llm.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{client: client, logger: logger}
}

// Answer resolves the question in order of preference: a matching extractor
// over the command output, generation from output plus evidence, a formatted
// knowledge-base excerpt, and finally the neutral no-answer response.
func (a *Answerer) Answer(ctx context.Context, question string, results []types.CommandResult, evidence types.Evidence) string {
	lowered := strings.ToLower(question)

	for _, route := range answerRoutes {
		for _, keyword := range route.keywords {
			if !strings.Contains(lowered, keyword) {
				continue
			}
			if answer := route.extract(results); answer != "" {
				return answer
			}
			break
		}
	}

	if a.client.Available() {
		if answer := a.synthesize(ctx, question, results, evidence); answer != "" {
			return answer
		}
		a.logger.Debug("answer synthesis empty, trying knowledge excerpt")
	}

	if excerpt := knowledgeExcerpt(evidence.Knowledge); excerpt != "" {
		return excerpt
	}

	return NoDirectAnswer
}

func (a *Answerer) synthesize(ctx context.Context, question string, results []types.CommandResult, evidence types.Evidence) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", question)

	var combined string
	for _, result := range results {
		if result.Output != "" {
			combined += result.Output + "\n"
		}
	}
	if combined != "" {
		fmt.Fprintf(&sb, "\nDiagnostic output:\n%s", combined)
	}
	for _, match := range evidence.Knowledge {
		fmt.Fprintf(&sb, "\nPast case %s: %s -> %s\n", match.ConversationID, match.Issue, match.Response)
	}
	for _, hit := range evidence.Web {
		fmt.Fprintf(&sb, "\nWeb hint: %s: %s\n", hit.Title, hit.Snippet)
	}

	return strings.TrimSpace(a.client.Generate(ctx, answerSystemPrompt, sb.String()))
}

// knowledgeExcerpt formats the best knowledge-base match as suggested steps.
func knowledgeExcerpt(matches []types.KnowledgeMatch) string {
	for _, match := range matches {
		if strings.TrimSpace(match.Response) == "" {
			continue
		}
		return fmt.Sprintf("A similar case (%s) was resolved with these steps:\n%s", match.ConversationID, match.Response)
	}
	return ""
}
