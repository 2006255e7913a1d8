package compliance

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/macrolens/internal/models"
)

// Policy is the vocabulary and section configuration a Filter is built from.
// A Filter copies what it needs, so changing a Policy afterwards has no effect.
type Policy struct {
	SectionAssets    map[string]models.AssetClass // section ID -> gating asset
	ActorTerms       []Term
	ProtectedPhrases []string
	DirectionalTerms []string
	Placeholder      string
	RevisionMarker   string
	MetricPatterns   map[string]string
	Whitelist        map[models.Dial][]string
	Headings         []HeadingRule
	SectionAnchors   map[string]string // section ID -> anchor id
}

// DefaultPolicy returns the built-in vocabulary.
func DefaultPolicy() Policy {
	p := Policy{
		SectionAssets:    make(map[string]models.AssetClass, len(defaultSectionAssets)),
		ActorTerms:       append([]Term(nil), defaultActorTerms...),
		ProtectedPhrases: append([]string(nil), defaultProtectedPhrases...),
		DirectionalTerms: append([]string(nil), defaultDirectionalTerms...),
		Placeholder:      DefaultPlaceholder,
		RevisionMarker:   DefaultRevisionMarker,
		MetricPatterns:   make(map[string]string, len(defaultMetricPatterns)),
		Whitelist:        make(map[models.Dial][]string, len(defaultWhitelist)),
		Headings:         append([]HeadingRule(nil), defaultHeadings...),
		SectionAnchors:   make(map[string]string, len(defaultSectionAnchors)),
	}
	for k, v := range defaultSectionAssets {
		p.SectionAssets[k] = v
	}
	for k, v := range defaultMetricPatterns {
		p.MetricPatterns[k] = v
	}
	for k, v := range defaultWhitelist {
		p.Whitelist[k] = append([]string(nil), v...)
	}
	for k, v := range defaultSectionAnchors {
		p.SectionAnchors[k] = v
	}
	return p
}

// WithExtraTerms returns a copy of p with additional banned actor nouns and
// directional terms. Extra actor nouns are replaced with "market participants".
func (p Policy) WithExtraTerms(actors, directional []string) Policy {
	out := p
	out.ActorTerms = append([]Term(nil), p.ActorTerms...)
	for _, a := range actors {
		if a = strings.TrimSpace(a); a != "" {
			out.ActorTerms = append(out.ActorTerms, Term{Pattern: regexp.QuoteMeta(a), Replacement: NeutralNoun})
		}
	}
	out.DirectionalTerms = append([]string(nil), p.DirectionalTerms...)
	for _, d := range directional {
		if d = strings.TrimSpace(d); d != "" {
			out.DirectionalTerms = append(out.DirectionalTerms, regexp.QuoteMeta(d))
		}
	}
	return out
}

type actorRule struct {
	re   *regexp.Regexp
	repl string
}

type metricRule struct {
	name string
	re   *regexp.Regexp
}

// wordRegexp compiles a case-insensitive, word-bounded alternation.
func wordRegexp(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(patterns, "|") + `)\b`)
}

func compilePolicy(p Policy) (*Filter, error) {
	f := &Filter{
		sectionAssets:  make(map[string]models.AssetClass, len(p.SectionAssets)),
		sectionAnchors: make(map[string]string, len(p.SectionAnchors)),
		whitelist:      make(map[models.Dial]map[string]bool, len(p.Whitelist)),
		placeholder:    p.Placeholder,
		marker:         p.RevisionMarker,
	}
	if f.placeholder == "" {
		f.placeholder = DefaultPlaceholder
	}
	if f.marker == "" {
		f.marker = DefaultRevisionMarker
	}

	for k, v := range p.SectionAssets {
		f.sectionAssets[strings.ToUpper(k)] = v
	}
	for k, v := range p.SectionAnchors {
		f.sectionAnchors[strings.ToUpper(k)] = v
	}

	for _, t := range p.ActorTerms {
		re, err := wordRegexp([]string{t.Pattern})
		if err != nil {
			return nil, fmt.Errorf("compile actor term %q: %w", t.Pattern, err)
		}
		repl := t.Replacement
		if repl == "" {
			repl = NeutralNoun
		}
		f.actors = append(f.actors, actorRule{re: re, repl: repl})
	}

	var err error
	if f.protected, err = wordRegexp(p.ProtectedPhrases); err != nil {
		return nil, fmt.Errorf("compile protected phrases: %w", err)
	}
	if f.directional, err = wordRegexp(p.DirectionalTerms); err != nil {
		return nil, fmt.Errorf("compile directional terms: %w", err)
	}

	names := make([]string, 0, len(p.MetricPatterns))
	for name := range p.MetricPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		re, err := regexp.Compile(`(?i)` + p.MetricPatterns[name])
		if err != nil {
			return nil, fmt.Errorf("compile metric pattern %s: %w", name, err)
		}
		f.metrics = append(f.metrics, metricRule{name: name, re: re})
	}

	for dial, allowed := range p.Whitelist {
		set := make(map[string]bool, len(allowed))
		for _, m := range allowed {
			set[m] = true
		}
		f.whitelist[dial] = set
	}

	for _, h := range p.Headings {
		rule := HeadingRule{Ordinal: h.Ordinal, Anchor: h.Anchor}
		for _, k := range h.Keywords {
			rule.Keywords = append(rule.Keywords, strings.ToLower(k))
		}
		f.headings = append(f.headings, rule)
	}

	// Emitted text must never be rewritten on a second pass.
	for _, emitted := range []string{f.placeholder, f.marker, ActorNote, RedactionNote} {
		if f.directional != nil && f.directional.MatchString(emitted) {
			return nil, fmt.Errorf("emitted text %q contains a directional term", emitted)
		}
		for _, a := range f.actors {
			if a.re.MatchString(emitted) {
				return nil, fmt.Errorf("emitted text %q contains an actor term", emitted)
			}
		}
	}
	for _, m := range f.metrics {
		if m.re.MatchString(f.marker) {
			return nil, fmt.Errorf("revision marker cites metric %s", m.name)
		}
	}

	return f, nil
}
