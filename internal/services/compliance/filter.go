// Package compliance rewrites LLM narratives so they cannot contradict the
// deterministic signals. Filters are immutable and safe for concurrent use.
package compliance

import (
	"regexp"
	"strings"
	"sync"

	"github.com/ternarybob/macrolens/internal/models"
)

// Report counts what each pass changed.
type Report = models.ComplianceReport

// Filter applies the compliance passes for one Policy.
type Filter struct {
	sectionAssets  map[string]models.AssetClass
	sectionAnchors map[string]string
	actors         []actorRule
	protected      *regexp.Regexp
	directional    *regexp.Regexp
	placeholder    string
	marker         string
	metrics        []metricRule
	whitelist      map[models.Dial]map[string]bool
	headings       []HeadingRule
}

// NewFilter compiles a Filter. It fails when a pattern does not compile or when
// the policy's own placeholder or marker would be rewritten on a second pass.
func NewFilter(policy Policy) (*Filter, error) {
	return compilePolicy(policy)
}

var (
	defaultOnce   sync.Once
	defaultFilter *Filter
)

// Default returns the shared Filter built from DefaultPolicy.
func Default() *Filter {
	defaultOnce.Do(func() {
		f, err := NewFilter(DefaultPolicy())
		if err != nil {
			panic("compliance: default policy: " + err.Error())
		}
		defaultFilter = f
	})
	return defaultFilter
}

// Enforce runs every pass and returns the compliant text.
func (f *Filter) Enforce(text string, sigs models.SignalSet) string {
	out, _ := f.EnforceWithReport(text, sigs)
	return out
}

// EnforceWithReport runs every pass and reports what changed. It never panics:
// if a pass fails the text is redacted wholesale and returned with sentinels removed.
func (f *Filter) EnforceWithReport(text string, sigs models.SignalSet) (out string, report Report) {
	defer func() {
		if r := recover(); r != nil {
			out, report = f.fallback(text), Report{}
		}
	}()

	text, report.FenceStripped = stripFence(text)

	blocks := f.Parse(text, sigs)
	for _, b := range blocks {
		if b.SectionID != "" {
			report.Sections = append(report.Sections, b.SectionID)
		}
	}

	report.ActorReplacements = f.normalizeActors(blocks)
	if report.ActorReplacements > 0 && appendNote(blocks, ActorNote) {
		report.DisclosureNotes = append(report.DisclosureNotes, ActorNote)
	}

	report.SignalLinesRewritten, report.DirectionLinesForced = f.overwriteSignalLines(blocks, sigs)

	f.redactBlocks(blocks, sigs, &report)

	report.ClaimedScores, report.FlaggedJustifications = f.lintScoreboard(blocks)

	lines := strings.Split(Render(blocks), "\n")
	lines = f.injectAnchors(lines, &report)
	out = strings.Join(lines, "\n")

	out, report.BoldStripped = hardenBold(out)
	if report.BoldStripped {
		// Removing bold markers can re-join a split banned term.
		blocks = f.Parse(out, sigs)
		f.redactBlocks(blocks, sigs, &report)
		out = Render(blocks)
	}

	return out, report
}

func (f *Filter) fallback(text string) string {
	if f.directional != nil {
		text = f.directional.ReplaceAllString(text, f.placeholder)
	}
	return sentinelRe.ReplaceAllString(text, "")
}
