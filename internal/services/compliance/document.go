package compliance

import (
	"regexp"
	"strings"

	"github.com/ternarybob/macrolens/internal/models"
)

// SectionState is the direction gate of one block.
type SectionState int

const (
	StateUnknown SectionState = iota
	StateForbidden
	StateAllowed
)

func (s SectionState) String() string {
	switch s {
	case StateForbidden:
		return "forbidden"
	case StateAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// Block is a run of lines between section delimiters.
type Block struct {
	SectionID string
	State     SectionState
	Lines     []string
}

// unsectioned names the preamble before the first delimiter in reports.
const unsectioned = "UNSECTIONED"

var (
	sentinelRe = regexp.MustCompile(`\[SECTION:([A-Za-z0-9_]+)\]`)
	markerRe   = regexp.MustCompile(`^\s*<a id="[^"]*" data-section="([A-Za-z0-9_]+)"></a>\s*$`)
	anchorRe   = regexp.MustCompile(`^\s*<a id="([^"]*)"(?: data-section="[^"]*")?></a>\s*$`)
)

// sectionOf returns the section a delimiter line opens, or "" for ordinary text.
// The last sentinel on a line wins.
func sectionOf(line string) string {
	if m := markerRe.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(m[1])
	}
	if all := sentinelRe.FindAllStringSubmatch(line, -1); len(all) > 0 {
		return strings.ToUpper(all[len(all)-1][1])
	}
	return ""
}

// Parse splits text into blocks. Only sentinels and section marker lines
// start a new block; headings and prose never change the state.
func (f *Filter) Parse(text string, sigs models.SignalSet) []Block {
	var blocks []Block
	cur := Block{}
	for _, line := range strings.Split(text, "\n") {
		if id := sectionOf(line); id != "" {
			if len(cur.Lines) > 0 {
				blocks = append(blocks, cur)
			}
			cur = Block{SectionID: id}
		}
		cur.Lines = append(cur.Lines, line)
	}
	blocks = append(blocks, cur)

	for i := range blocks {
		blocks[i].State = f.state(blocks[i].SectionID, sigs)
	}
	return blocks
}

// Render joins blocks back into text. Render(Parse(t)) == t.
func Render(blocks []Block) string {
	var lines []string
	for _, b := range blocks {
		lines = append(lines, b.Lines...)
	}
	return strings.Join(lines, "\n")
}

func (f *Filter) state(section string, sigs models.SignalSet) SectionState {
	asset, mapped := f.sectionAssets[section]
	if !mapped {
		return StateUnknown
	}
	if r, ok := sigs[asset]; ok && r.DirectionAllowed {
		return StateAllowed
	}
	return StateForbidden
}

// forbids resolves the unknown state against the whole signal set.
func forbids(state SectionState, sigs models.SignalSet) bool {
	switch state {
	case StateAllowed:
		return false
	case StateForbidden:
		return true
	default:
		return !sigs.AllDirectionAllowed()
	}
}

func sectionName(b Block) string {
	if b.SectionID == "" {
		return unsectioned
	}
	return b.SectionID
}

// appendNote adds a disclosure paragraph to the last block unless the text already has it.
func appendNote(blocks []Block, note string) bool {
	for _, b := range blocks {
		for _, l := range b.Lines {
			if strings.Contains(l, note) {
				return false
			}
		}
	}
	last := &blocks[len(blocks)-1]
	last.Lines = append(last.Lines, "", note)
	return true
}
