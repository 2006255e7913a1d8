package curve

import (
	"fmt"
	"sort"

	"github.com/ternarybob/macrolens/internal/models"
)

// MissingNotePrefix marks per-row gaps. Renderers hide these from alert callouts.
const MissingNotePrefix = "partial_missing_"

// Aggregate rolls rows up by the layout's clusters.
// Rows not named by the layout are ignored. A row counts as present when its OI change is known.
func Aggregate(layout Layout, rows map[string]models.Row) models.CurveAggregate {
	agg := models.CurveAggregate{
		Layout: layout.Name,
		Rows:   make(map[string]models.Row, len(layout.Rows)),
		Order:  append([]string(nil), layout.Rows...),
	}

	var present []rowAbs
	var total int64

	for _, name := range layout.Rows {
		r, ok := rows[name]
		if ok {
			agg.Rows[name] = r
		}
		if !ok || r.OIChange == nil {
			agg.Quality.MissingRows = append(agg.Quality.MissingRows, name)
			continue
		}
		a := abs64(*r.OIChange)
		present = append(present, rowAbs{name: name, abs: a})
		total += a
	}

	for _, def := range layout.Clusters {
		stats := models.ClusterStats{Name: def.Name, Members: append([]string(nil), def.Members...)}
		for _, member := range def.Members {
			r, ok := rows[member]
			if !ok || r.OIChange == nil {
				continue
			}
			stats.AbsOIChange += abs64(*r.OIChange)
			stats.NetOIChange += *r.OIChange
		}
		agg.Clusters = append(agg.Clusters, stats)
	}

	agg.Dominance = dominance(layout, agg.Clusters, present, total)

	agg.Quality.IsComplete = len(present) >= layout.MinPresent
	if !agg.Quality.IsComplete {
		agg.Quality.Notes = append(agg.Quality.Notes, IncompleteNote(layout))
	}
	for _, name := range agg.Quality.MissingRows {
		agg.Quality.Notes = append(agg.Quality.Notes, MissingNotePrefix+name)
	}

	return agg
}

type rowAbs struct {
	name string
	abs  int64
}

func dominance(layout Layout, clusters []models.ClusterStats, present []rowAbs, total int64) models.Dominance {
	d := models.Dominance{RegimeLabel: layout.MixedLabel}
	if total == 0 {
		return d
	}

	var best int64 = -1
	for _, c := range clusters {
		if c.AbsOIChange > best {
			best = c.AbsOIChange
			d.ActiveCluster = c.Name
		}
	}

	// Stable sort keeps layout order among equal magnitudes.
	ranked := append(present[:0:0], present...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].abs > ranked[j].abs })
	d.ActiveRow = ranked[0].name

	top := ranked[0].abs
	if len(ranked) > 1 {
		top += ranked[1].abs
	}
	d.Concentration = float64(top) / float64(total)

	if len(clusters) >= 2 {
		front := clusters[0].AbsOIChange
		back := clusters[len(clusters)-1].AbsOIChange
		switch {
		case front > back:
			d.RegimeLabel = layout.FrontLabel
		case back > front:
			d.RegimeLabel = layout.BackLabel
		}
	}
	return d
}

// IncompleteNote is the fixed sentinel appended when too few rows report.
func IncompleteNote(layout Layout) string {
	return fmt.Sprintf("INCOMPLETE: fewer than %d of %d %s reported", layout.MinPresent, len(layout.Rows), layout.Unit)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
