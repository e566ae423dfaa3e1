// Package summarize builds short extractive summaries over ranked evidence.
// Selection is greedy over sentences in score-then-position order, so the
// summary quotes the evidence rather than paraphrasing it.
package summarize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/davidahmann/loom/core/schema/v1/evidence"
)

// EmptySummary is returned when no evidence is available to quote.
const EmptySummary = "No evidence available."

// Result is the summary plus the distinct source item ids that contributed
// a selected sentence, in order of first appearance.
type Result struct {
	Summary   string   `json:"summary"`
	Citations []string `json:"citations"`
}

// Summarize re-sorts evidence by score descending (callers are not trusted
// to pre-sort) and greedily selects up to maxSentences sentences.
func Summarize(ranked []evidence.Item, maxSentences int) Result {
	if len(ranked) == 0 || maxSentences <= 0 {
		return Result{Summary: EmptySummary, Citations: []string{}}
	}

	ordered := make([]evidence.Item, len(ranked))
	copy(ordered, ranked)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	var (
		selected  []string
		citations []string
		cited     = map[string]bool{}
	)
	for _, item := range ordered {
		if len(selected) >= maxSentences {
			break
		}
		for _, sentence := range SplitSentences(textualContent(item)) {
			if len(selected) >= maxSentences {
				break
			}
			selected = append(selected, sentence)
			if !cited[item.ID] {
				cited[item.ID] = true
				citations = append(citations, item.ID)
			}
		}
	}

	if len(selected) == 0 {
		return Result{Summary: EmptySummary, Citations: []string{}}
	}
	if citations == nil {
		citations = []string{}
	}
	return Result{Summary: strings.Join(selected, " "), Citations: citations}
}

// SplitSentences splits text at sentence-terminating punctuation, keeping
// the punctuation attached to its sentence.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     = 0
	)
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Only break at end of text or before whitespace, so "3.14" and
		// "data-testid=..." stay intact.
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' && runes[i+1] != '\t' {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// textualContent pulls prose out of an item, checking conventional fields in
// a fixed order. Content with no prose field falls back to its stringified
// form so evidence is never silently dropped from the summary.
func textualContent(item evidence.Item) string {
	for _, key := range []string{"text", "summary", "message", "description"} {
		if value, ok := item.Content[key].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	if len(item.Content) == 0 {
		return ""
	}
	serialized, err := json.Marshal(item.Content)
	if err != nil {
		return fmt.Sprintf("%v", item.Content)
	}
	return string(serialized)
}
