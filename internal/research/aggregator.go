// Package research aggregates supporting evidence for a diagnosis: local
// knowledge-base matches and web hits, fetched concurrently since the two
// lookups are independent and side-effect-free.
package research

import (
	"context"
	"strings"

	"deskfix/internal/knowledge"
	"deskfix/internal/types"
	"deskfix/internal/websearch"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WebQuerySuffix is appended to the issue text to steer web results toward
// actionable troubleshooting pages.
const WebQuerySuffix = " Windows 11 troubleshooting steps"

// SOPScoreThreshold is the minimum knowledge score for a match to be offered
// as a standard-operating-procedure hint to the planner.
const SOPScoreThreshold = 0.2

// Aggregator fans out to the knowledge base and the web-search collaborator.
type Aggregator struct {
	store  *knowledge.Store
	web    *websearch.Client
	topK   int
	webMax int
	logger *zap.Logger
}

// SetWebMax overrides the web hit cap.
func (a *Aggregator) SetWebMax(n int) {
	if n > 0 {
		a.webMax = n
	}
}

// NewAggregator wires the two retrieval channels. Either collaborator may be
// nil, in which case its channel yields no evidence.
func NewAggregator(store *knowledge.Store, web *websearch.Client, topK int, logger *zap.Logger) *Aggregator {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{store: store, web: web, topK: topK, webMax: websearch.DefaultMaxResults, logger: logger}
}

// Fetch gathers evidence for one issue. Web retrieval is skipped for purely
// informational system_info queries. Retrieval failures degrade to empty
// channels; Fetch never fails the pipeline.
func (a *Aggregator) Fetch(ctx context.Context, issueText string, issueType types.IssueType) types.Evidence {
	evidence := types.Evidence{WebQuery: issueText + WebQuerySuffix}
	keywords := Keywords(issueText)

	var g errgroup.Group

	g.Go(func() error {
		if a.store == nil || !a.store.Ready() {
			return nil
		}
		matches, err := a.store.Search(ctx, issueText, a.topK, keywords)
		if err != nil {
			a.logger.Warn("knowledge search failed", zap.Error(err))
			return nil
		}
		evidence.Knowledge = matches
		return nil
	})

	g.Go(func() error {
		if a.web == nil || issueType == types.IssueSystemInfo {
			return nil
		}
		evidence.Web = a.web.Search(ctx, evidence.WebQuery, a.webMax)
		_, evidence.WebError, evidence.WebCount = a.web.LastStatus()
		return nil
	})

	// Both goroutines always return nil; the group is used for the join.
	_ = g.Wait()

	a.logger.Debug("evidence fetched",
		zap.Int("knowledge", len(evidence.Knowledge)),
		zap.Int("web", evidence.WebCount),
		zap.Strings("keywords", keywords))
	return evidence
}

// SelectSOP returns the formatted standard-operating-procedure hint when the
// top knowledge match clears the score threshold, else empty.
func SelectSOP(matches []types.KnowledgeMatch) string {
	if len(matches) == 0 {
		return ""
	}
	top := matches[0]
	if top.Score < SOPScoreThreshold {
		return ""
	}
	return top.ConversationID + ": " + top.Issue + " -> " + top.Response
}

// keywordRule maps issue-text substrings to a boost keyword.
type keywordRule struct {
	triggers []string
	keyword  string
}

var keywordRules = []keywordRule{
	{[]string{"password"}, "password"},
	{[]string{"blue screen", "bluescreen", "bsod"}, "blue screen"},
	{[]string{"wifi", "wi-fi", "network", "internet"}, "wi-fi"},
	{[]string{"bluetooth", "blue tooth", "blutooth"}, "bluetooth"},
	{[]string{"printer"}, "printer"},
	{[]string{"install", "setup"}, "install"},
	{[]string{"performance", "slow"}, "performance"},
}

// Keywords derives the knowledge-base boost keywords from the issue text.
func Keywords(issueText string) []string {
	text := strings.ToLower(issueText)
	var out []string
	for _, rule := range keywordRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(text, trigger) {
				out = append(out, rule.keyword)
				break
			}
		}
	}
	return out
}
