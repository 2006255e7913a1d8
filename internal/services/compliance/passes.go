package compliance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/macrolens/internal/models"
)

const (
	signalKey    = "Signal:"
	directionKey = "Direction:"
	fence        = "```"

	anchorPlaceholder = "redacted"
)

var (
	fxWordRe      = regexp.MustCompile(`\bfx\b`)
	scoreHeaderRe = regexp.MustCompile(`(?i)^\s*\|\s*\**\s*dial\s*\**\s*\|\s*\**\s*score[^|]*\|\s*\**\s*justification`)
	separatorRe   = regexp.MustCompile(`^\s*\|(?:\s*:?-+:?\s*\|)+\s*$`)
	numberRe      = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	ordinalRe     = regexp.MustCompile(`^(\d{1,2})\s*[.):]\s*(.*)$`)
)

// stripFence removes leading ``` or ```markdown lines and the fences that close them.
// Nested fences are unwrapped until the text no longer opens with one.
func stripFence(text string) (string, bool) {
	stripped := false
	for {
		out, ok := stripOuterFence(text)
		if !ok {
			return text, stripped
		}
		text, stripped = out, true
	}
}

func stripOuterFence(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	first := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			first = i
			break
		}
	}
	if first < 0 || !isOpeningFence(lines[first]) {
		return text, false
	}
	lines = lines[first+1:]

	fences, last := 0, -1
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, fence) {
			fences++
		}
		if t != "" {
			last = i
		}
	}
	if last >= 0 && strings.TrimSpace(lines[last]) == fence && fences%2 == 1 {
		lines = lines[:last]
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n"), true
}

func isOpeningFence(line string) bool {
	t := strings.ToLower(strings.TrimSpace(line))
	return t == fence || t == fence+"markdown" || t == fence+"md"
}

// normalizeActors rewrites actor attribution in every block.
func (f *Filter) normalizeActors(blocks []Block) int {
	total := 0
	for bi := range blocks {
		for i, line := range blocks[bi].Lines {
			if anchorRe.MatchString(line) {
				continue
			}
			var n int
			blocks[bi].Lines[i], n = f.replaceActors(line)
			total += n
		}
	}
	return total
}

func (f *Filter) replaceActors(line string) (string, int) {
	var saved []string
	if f.protected != nil {
		line = f.protected.ReplaceAllStringFunc(line, func(m string) string {
			saved = append(saved, m)
			return "\x00" + strconv.Itoa(len(saved)-1) + "\x00"
		})
	}

	n := 0
	for _, rule := range f.actors {
		repl := rule.repl
		line = rule.re.ReplaceAllStringFunc(line, func(m string) string {
			n++
			return matchCase(m, repl)
		})
	}

	for i, s := range saved {
		line = strings.Replace(line, "\x00"+strconv.Itoa(i)+"\x00", s, 1)
	}
	return line, n
}

// matchCase carries the capitalisation of src over to repl.
func matchCase(src, repl string) string {
	if repl == "" {
		return repl
	}
	if utf8.RuneCountInString(src) > 1 && src == strings.ToUpper(src) && src != strings.ToLower(src) {
		return strings.ToUpper(repl)
	}
	if r, _ := utf8.DecodeRuneInString(src); unicode.IsUpper(r) {
		first, size := utf8.DecodeRuneInString(repl)
		return string(unicode.ToUpper(first)) + repl[size:]
	}
	return repl
}

// overwriteSignalLines states the computed label on every "Signal:" line and
// forces "Direction:" lines to Unknown where direction is gated.
func (f *Filter) overwriteSignalLines(blocks []Block, sigs models.SignalSet) (signalLines, directionLines int) {
	for bi := range blocks {
		b := &blocks[bi]
		for i, line := range b.Lines {
			if idx := strings.Index(line, signalKey); idx >= 0 {
				if asset, ok := f.lineAsset(line[:idx], b.SectionID); ok {
					label := models.SignalUnknown
					if r, ok := sigs[asset]; ok && r.SignalLabel != "" {
						label = r.SignalLabel
					}
					if nl := rewriteValue(line, signalKey, string(label)); nl != line {
						line = nl
						signalLines++
					}
				}
			}

			if idx := strings.Index(line, directionKey); idx >= 0 {
				allowed := !forbids(b.State, sigs)
				if asset, ok := f.lineAsset(line[:idx], b.SectionID); ok {
					allowed = sigs[asset].DirectionAllowed
				}
				if !allowed {
					if nl := rewriteValue(line, directionKey, string(models.SignalUnknown)); nl != line {
						line = nl
						directionLines++
					}
				}
			}
			b.Lines[i] = line
		}
	}
	return signalLines, directionLines
}

// lineAsset names the asset a key line refers to, from its own prefix or its section.
func (f *Filter) lineAsset(prefix, section string) (models.AssetClass, bool) {
	p := strings.ToLower(prefix)
	switch {
	case strings.Contains(p, "equit"):
		return models.AssetEquity, true
	case strings.Contains(p, "rates"), strings.Contains(p, "treasur"):
		return models.AssetRates, true
	case fxWordRe.MatchString(p), strings.Contains(p, "currenc"):
		return models.AssetFX, true
	}
	asset, ok := f.sectionAssets[section]
	return asset, ok
}

// rewriteValue replaces everything after key with value, keeping bold around the key balanced.
func rewriteValue(line, key, value string) string {
	idx := strings.Index(line, key)
	head := line[:idx+len(key)]
	rest := line[idx+len(key):]

	if strings.Count(head, "**")%2 == 0 {
		return head + " " + value
	}
	if strings.HasPrefix(rest, "**") {
		return head + "** " + value
	}
	return head + " " + value + "**"
}

// redactBlocks replaces directional terms in every block whose gate forbids direction.
func (f *Filter) redactBlocks(blocks []Block, sigs models.SignalSet, report *Report) {
	if f.directional == nil {
		return
	}
	total := 0
	for bi := range blocks {
		b := &blocks[bi]
		if !forbids(b.State, sigs) {
			continue
		}
		n := 0
		count := func(repl string) func(string) string {
			return func(string) string {
				n++
				return repl
			}
		}
		for i, line := range b.Lines {
			// Only the id of an anchor is text; the placeholder may not be a valid id.
			if m := anchorRe.FindStringSubmatchIndex(line); m != nil {
				id := f.directional.ReplaceAllStringFunc(line[m[2]:m[3]], count(anchorPlaceholder))
				b.Lines[i] = line[:m[2]] + id + line[m[3]:]
				continue
			}
			b.Lines[i] = f.directional.ReplaceAllStringFunc(line, count(f.placeholder))
		}
		if n == 0 {
			continue
		}
		total += n
		name := sectionName(*b)
		if !containsString(report.RedactedSections, name) {
			report.RedactedSections = append(report.RedactedSections, name)
		}
	}
	report.Redactions += total
	if total > 0 && appendNote(blocks, RedactionNote) {
		report.DisclosureNotes = append(report.DisclosureNotes, RedactionNote)
	}
}

// lintScoreboard checks the scoreboard table, preferring the DASHBOARD block.
func (f *Filter) lintScoreboard(blocks []Block) (map[models.Dial]float64, []models.Dial) {
	order := make([]int, 0, len(blocks)*2)
	for i, b := range blocks {
		if b.SectionID == "DASHBOARD" {
			order = append(order, i)
		}
	}
	for i := range blocks {
		order = append(order, i)
	}

	for _, bi := range order {
		lines := blocks[bi].Lines
		for i, line := range lines {
			if scoreHeaderRe.MatchString(line) {
				return f.lintTable(lines, i+1)
			}
		}
	}
	return nil, nil
}

// lintTable walks the rows after a scoreboard header until the table ends.
// Flagged rows are rewritten in place.
func (f *Filter) lintTable(lines []string, start int) (map[models.Dial]float64, []models.Dial) {
	claimed := make(map[models.Dial]float64)
	var flagged []models.Dial

	for j := start; j < len(lines); j++ {
		row := strings.TrimSpace(lines[j])
		if !strings.HasPrefix(row, "|") {
			break
		}
		if separatorRe.MatchString(row) {
			continue
		}
		cells := splitRow(row)
		dial, ok := models.ParseDial(cells[0])
		if !ok {
			continue
		}
		if len(cells) > 1 {
			if m := numberRe.FindString(cells[1]); m != "" {
				if v, err := strconv.ParseFloat(m, 64); err == nil {
					claimed[dial] = v
				}
			}
		}
		if len(cells) > 2 && f.citesOutside(dial, cells[2]) {
			cells[2] = f.marker
			lines[j] = "| " + strings.Join(cells, " | ") + " |"
			flagged = append(flagged, dial)
		}
	}

	if len(claimed) == 0 {
		claimed = nil
	}
	return claimed, flagged
}

func (f *Filter) citesOutside(dial models.Dial, justification string) bool {
	allowed, ok := f.whitelist[dial]
	if !ok {
		return false
	}
	for _, m := range f.metrics {
		if !allowed[m.name] && m.re.MatchString(justification) {
			return true
		}
	}
	return false
}

// splitRow splits a markdown table row on unescaped pipes.
func splitRow(row string) []string {
	row = strings.TrimPrefix(strings.TrimSpace(row), "|")
	if strings.HasSuffix(row, "|") && !strings.HasSuffix(row, `\|`) {
		row = row[:len(row)-1]
	}

	var cells []string
	var cur strings.Builder
	for i := 0; i < len(row); i++ {
		if row[i] == '|' && (i == 0 || row[i-1] != '\\') {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(row[i])
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

// injectAnchors turns sentinels into section marker lines and puts an anchor
// before each recognised heading that lacks one.
func (f *Filter) injectAnchors(lines []string, report *Report) []string {
	used := make(map[string]bool)
	for _, l := range lines {
		if m := anchorRe.FindStringSubmatch(l); m != nil {
			used[m[1]] = true
		}
	}

	out := make([]string, 0, len(lines)+len(f.headings))
	prevIsAnchor := func() bool {
		return len(out) > 0 && anchorRe.MatchString(out[len(out)-1])
	}

	for _, line := range lines {
		if all := sentinelRe.FindAllStringSubmatch(line, -1); len(all) > 0 {
			section := strings.ToUpper(all[len(all)-1][1])
			cleaned := strings.TrimRight(sentinelRe.ReplaceAllString(line, ""), " \t")
			report.SentinelsStripped += len(all)

			id := f.sectionAnchors[section]
			if h, ok := f.matchHeading(cleaned); ok {
				id = h.Anchor
			}
			if id == "" {
				id = strings.ToLower(section)
			}
			marker := fmt.Sprintf(`<a id="%s" data-section="%s"></a>`, uniqueID(id, used), section)
			if prevIsAnchor() {
				out[len(out)-1] = marker
			} else {
				out = append(out, marker)
			}
			report.AnchorsInjected++

			if strings.TrimSpace(cleaned) != "" {
				out = append(out, cleaned)
			}
			continue
		}

		if h, ok := f.matchHeading(line); ok && !used[h.Anchor] && !prevIsAnchor() {
			out = append(out, fmt.Sprintf(`<a id="%s"></a>`, h.Anchor))
			used[h.Anchor] = true
			report.AnchorsInjected++
		}
		out = append(out, line)
	}
	return out
}

func uniqueID(id string, used map[string]bool) string {
	candidate := id
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
	used[candidate] = true
	return candidate
}

// matchHeading recognises a narrative heading by ordinal and keyword, then by
// keyword alone so renumbered headings still get their anchor.
func (f *Filter) matchHeading(line string) (HeadingRule, bool) {
	t := strings.TrimSpace(line)
	bold := len(t) > 4 && strings.HasPrefix(t, "**") && strings.HasSuffix(t, "**")
	if !strings.HasPrefix(t, "#") && !bold {
		return HeadingRule{}, false
	}
	t = strings.ToLower(strings.Trim(t, "#* \t"))

	if m := ordinalRe.FindStringSubmatch(t); m != nil {
		ordinal, _ := strconv.Atoi(m[1])
		t = m[2]
		for _, h := range f.headings {
			if h.Ordinal == ordinal && hasKeyword(t, h.Keywords) {
				return h, true
			}
		}
	}
	for _, h := range f.headings {
		if hasKeyword(t, h.Keywords) {
			return h, true
		}
	}
	return HeadingRule{}, false
}

func hasKeyword(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// hardenBold strips all bold markers when they are unbalanced.
func hardenBold(text string) (string, bool) {
	if strings.Count(text, "**")%2 == 0 {
		return text, false
	}
	return strings.ReplaceAll(text, "**", ""), true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
