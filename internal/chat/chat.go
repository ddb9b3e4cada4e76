// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat answers questions about a paper, grounded in the paper
// itself and a handful of related papers from the graph, and turns free
// text research plans into root metadata.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/pkg/types"
)

// PlaceholderAnswer is returned to users when the backend fails.
const PlaceholderAnswer = "Chat failed, try again."

// MissingKeyNotice is returned when no API key is configured.
const MissingKeyNotice = "Claude API key missing. Provide ANTHROPIC_API_KEY to enable AI reasoning. " +
	"For now, this is a stubbed response."

// PlanID and PlanSource mark metadata built from a research plan.
const (
	PlanID     = "user_plan"
	PlanSource = "claude"
)

const (
	defaultMaxTokens = 400
	planMaxTokens    = 300
	defaultTimeout   = 15 * time.Second
	defaultPlanTitle = "User Research Plan"
)

const planSystemPrompt = "You are a research assistant that rewrites a user's research plan into " +
	"concise pseudo-paper metadata. Extract keywords, key topics, goals, and a short abstract."

// Service grounds questions and summarizes plans through a Backend.
type Service struct {
	backend   Backend
	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics counts chat failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a service. A nil backend means no API key is
// configured: answers are the stub notice and plans are summarized
// heuristically.
func NewService(b Backend, cfg types.AIConfig, opts ...Option) *Service {
	s := &Service{
		backend:   b,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    slog.Default(),
	}
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer replies to message about paper, using related as grounding.
// When the backend fails the returned answer is PlaceholderAnswer and the
// error wraps types.ErrChatFailed.
func (s *Service) Answer(ctx context.Context, paper types.PaperMetadata, related []types.PaperMetadata, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is required", types.ErrInvalidRequest)
	}
	if s.backend == nil {
		return MissingKeyNotice, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.backend.Complete(ctx, "", BuildPrompt(paper, related, message), s.maxTokens)
	if err != nil {
		s.metrics.IncChatFailure()
		s.logger.Warn("chat backend failed", "paper", paper.ID, "error", err)
		return PlaceholderAnswer, fmt.Errorf("%w: %v", types.ErrChatFailed, err)
	}
	return answer, nil
}

// BuildPrompt renders the grounding prompt for one question.
func BuildPrompt(paper types.PaperMetadata, related []types.PaperMetadata, message string) string {
	var rel strings.Builder
	for _, p := range related {
		year := "n/a"
		if p.Year > 0 {
			year = strconv.Itoa(p.Year)
		}
		authors := p.Authors
		if len(authors) > 3 {
			authors = authors[:3]
		}
		fmt.Fprintf(&rel, "- %s (%s) by %s\n", p.Title, year, strings.Join(authors, ", "))
	}
	relatedText := strings.TrimRight(rel.String(), "\n")
	if relatedText == "" {
		relatedText = "None listed."
	}

	abstract := paper.Abstract
	if abstract == "" {
		abstract = "N/A"
	}
	keywords := "n/a"
	if len(paper.Keywords) > 0 {
		keywords = strings.Join(paper.Keywords, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Paper: %s\n", paper.Title)
	fmt.Fprintf(&b, "Authors: %s\n", strings.Join(paper.Authors, ", "))
	fmt.Fprintf(&b, "Abstract: %s\n", abstract)
	fmt.Fprintf(&b, "Keywords: %s\n\n", keywords)
	fmt.Fprintf(&b, "Related papers:\n%s\n\n", relatedText)
	fmt.Fprintf(&b, "User question: %s\n", message)
	b.WriteString("Provide a concise, helpful answer focused on the research details and connections.")
	return b.String()
}

// SummarizePlan turns a research plan into root metadata with id
// PlanID. Without a backend, or when the backend fails, a heuristic
// summary is used.
func (s *Service) SummarizePlan(ctx context.Context, plan string) (types.PaperMetadata, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		return types.PaperMetadata{}, fmt.Errorf("%w: research plan is empty", types.ErrInvalidRequest)
	}
	if s.backend == nil {
		return HeuristicPlan(plan), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := "User research plan:\n" + plan + "\n\n" +
		"Return a summary with title, abstract, keywords, and main authors or stakeholders, " +
		"using lines that start with Title:, Abstract:, Keywords: and Authors:."
	reply, err := s.backend.Complete(ctx, planSystemPrompt, prompt, planMaxTokens)
	if err != nil {
		s.metrics.IncChatFailure()
		s.logger.Warn("plan summary failed, using heuristic", "error", err)
		return HeuristicPlan(plan), nil
	}
	return ParsePlan(reply), nil
}

// ParsePlan reads Title:, Keywords: and Authors: lines from a backend
// reply. Every other line becomes part of the abstract.
func ParsePlan(reply string) types.PaperMetadata {
	title := defaultPlanTitle
	authors := []string{"User"}
	var keywords, abstract []string

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*#- "))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		value := line
		if i := strings.Index(line, ":"); i >= 0 {
			value = strings.TrimSpace(strings.Trim(line[i+1:], "* "))
		}
		switch {
		case strings.HasPrefix(lower, "title"):
			if value != "" {
				title = value
			}
		case strings.HasPrefix(lower, "keyword"):
			keywords = append(keywords, splitList(value)...)
		case strings.HasPrefix(lower, "author"):
			if a := splitList(value); len(a) > 0 {
				authors = a
			}
		case strings.HasPrefix(lower, "abstract"):
			abstract = append(abstract, value)
		default:
			abstract = append(abstract, line)
		}
	}

	text := strings.Join(abstract, " ")
	if text == "" {
		text = strings.TrimSpace(reply)
	}
	return planMetadata(title, text, keywords, authors)
}

// HeuristicPlan summarizes a plan without a backend: the first sentence
// becomes the title and the most frequent longer words the keywords.
func HeuristicPlan(plan string) types.PaperMetadata {
	title := firstSentence(plan)
	if title == "" {
		title = defaultPlanTitle
	}
	return planMetadata(title, plan, topWords(plan, 5), []string{"User"})
}

func planMetadata(title, abstract string, keywords, authors []string) types.PaperMetadata {
	seen := make(map[string]bool)
	kws := []string{}
	for _, k := range keywords {
		if f := strings.ToLower(k); !seen[f] {
			seen[f] = true
			kws = append(kws, k)
		}
	}
	return types.PaperMetadata{
		ID:         PlanID,
		Title:      title,
		Abstract:   abstract,
		Keywords:   kws,
		Authors:    authors,
		Source:     PlanSource,
		References: []string{},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstSentence(s string) string {
	s = strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
	if i := strings.IndexAny(s, ".!?"); i > 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 120 {
		s = strings.TrimSpace(string(r[:120]))
	}
	return s
}

var stopWords = map[string]bool{
	"about": true, "also": true, "because": true, "between": true, "could": true,
	"from": true, "have": true, "into": true, "like": true, "more": true,
	"most": true, "much": true, "other": true, "over": true, "some": true,
	"such": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "using": true, "want": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true, "research": true, "plan": true,
}

// topWords returns up to n words longer than three letters, most frequent
// first, ties broken by first appearance.
func topWords(s string, n int) []string {
	count := make(map[string]int)
	first := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for i, w := range words {
		w = strings.Trim(w, "-")
		if len([]rune(w)) <= 3 || stopWords[w] {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = i
		}
		count[w]++
	}

	uniq := make([]string, 0, len(count))
	for w := range count {
		uniq = append(uniq, w)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if count[uniq[i]] != count[uniq[j]] {
			return count[uniq[i]] > count[uniq[j]]
		}
		return first[uniq[i]] < first[uniq[j]]
	})
	if len(uniq) > n {
		uniq = uniq[:n]
	}
	return uniq
}
