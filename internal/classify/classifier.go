// Package classify maps free-form issue reports onto the closed support
// taxonomy and builds the diagnostic plan for the chosen category.
package classify

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"deskfix/internal/llm"
	"deskfix/internal/types"
)

// keywordRule is one entry of the ordered fallback classifier. The first rule
// whose trigger appears in the lowercased issue text wins.
type keywordRule struct {
	issueType types.IssueType
	triggers  []string
}

var keywordRules = []keywordRule{
	{types.IssueChitchat, []string{"hello", "hey there", "thanks", "thank you", "good morning", "good afternoon", "how are you"}},
	{types.IssueInstallApp, []string{"install", "setup "}},
	{types.IssueBluetooth, []string{"bluetooth", "blue tooth", "blutooth"}},
	{types.IssueNetwork, []string{"wifi", "wi-fi", "wlan", "internet", "network", "ethernet", "no connection", "can't connect", "cannot connect"}},
	{types.IssueDiskSpace, []string{"disk", "drive is full", "c drive", "storage", "out of space", "low space"}},
	{types.IssueSystemInfo, []string{"os build", "os version", "what windows", "ip address", "my ip", "system info", "system details", "how much ram", "how much memory", "what cpu", "what processor", "about my computer", "about my pc"}},
	{types.IssueAccount, []string{"password", "sign in", "sign-in", "log in", "login", "account", "locked out"}},
	{types.IssueAppError, []string{"crash", "not responding", "won't open", "wont open", "stopped working", "error message", "keeps closing"}},
	{types.IssuePerformance, []string{"slow", "sluggish", "performance", "lag", "freez", "high cpu", "takes forever"}},
}

const classifySystemPrompt = `You are a Windows desktop support triage assistant.
Classify the user's message into exactly one issue_type from this list:
system_info, install_app, network, bluetooth, disk_space, performance, account, app_error, general, chitchat.
If the user asks to install software, set install_app to the application name, otherwise leave it empty.
Respond with JSON only, no prose: {"issue_type": "...", "install_app": "..."}`

type classification struct {
	IssueType  string `json:"issue_type"`
	InstallApp string `json:"install_app"`
}

// Classifier assigns issue categories, preferring the generation collaborator
// and falling back to the keyword rules when it is unavailable or returns
// output that cannot be parsed.
type Classifier struct {
	client llm.Client
	logger *zap.Logger
}

func NewClassifier(client llm.Client, logger *zap.Logger) *Classifier {
	if client == nil {
		client = llm.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, logger: logger}
}

// Classify returns the issue category for the text plus the extracted
// application name for install requests.
func (c *Classifier) Classify(ctx context.Context, issueText string) (types.IssueType, string) {
	if c.client.Available() {
		raw := c.client.Generate(ctx, classifySystemPrompt, issueText)
		if block := llm.ExtractJSONBlock(raw); block != "" {
			var parsed classification
			if err := json.Unmarshal([]byte(block), &parsed); err == nil {
				issueType := types.IssueType(strings.TrimSpace(parsed.IssueType))
				if issueType.Valid() {
					return issueType, strings.TrimSpace(parsed.InstallApp)
				}
			}
		}
		c.logger.Debug("classifier response unusable, using keyword rules")
	}
	return classifyByRules(issueText)
}

// Preclassify runs only the keyword rules, without the generation
// collaborator. Evidence gathering uses it to decide whether web search
// applies before the full plan is built.
func Preclassify(issueText string) (types.IssueType, string) {
	return classifyByRules(issueText)
}

// classifyByRules runs the ordered trigger table, defaulting to general.
func classifyByRules(issueText string) (types.IssueType, string) {
	lowered := strings.ToLower(issueText)
	if isGreetingOnly(lowered) {
		return types.IssueChitchat, ""
	}
	for _, rule := range keywordRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lowered, trigger) {
				if rule.issueType == types.IssueInstallApp {
					return types.IssueInstallApp, extractAppName(lowered)
				}
				return rule.issueType, ""
			}
		}
	}
	return types.IssueGeneral, ""
}

// isGreetingOnly catches bare greetings like "hi" or "hi!" that are too short
// for substring triggers to match safely.
func isGreetingOnly(lowered string) bool {
	trimmed := strings.Trim(strings.TrimSpace(lowered), "!.?,")
	switch trimmed {
	case "hi", "hey", "hello", "yo", "sup":
		return true
	}
	return false
}

// extractAppName pulls the application name from phrases like
// "please install zoom for me". Trailing politeness words are dropped.
func extractAppName(lowered string) string {
	fields := strings.Fields(lowered)
	for i, field := range fields {
		if field != "install" && field != "setup" {
			continue
		}
		var parts []string
		for _, word := range fields[i+1:] {
			word = strings.Trim(word, ".,!?\"'")
			switch word {
			case "please", "for", "me", "on", "my", "pc", "computer", "laptop", "the":
				continue
			}
			if word != "" {
				parts = append(parts, word)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
