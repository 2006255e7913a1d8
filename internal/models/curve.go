package models

import (
	"bytes"
	"encoding/json"
)

// Token is a raw bulletin cell. It accepts a JSON string, number or null.
type Token string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Token) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Token(s)
	default:
		*t = Token(data)
	}
	return nil
}

// TokenList accepts either a single token or an array of tokens.
type TokenList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TokenList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []Token
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		out := make(TokenList, len(many))
		for i, tok := range many {
			out[i] = string(tok)
		}
		*t = out
		return nil
	}

	var single Token
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*t = TokenList{string(single)}
	return nil
}

// Row is one tenor or product line from a bulletin section.
type Row struct {
	TotalVolume  *int64 `json:"total_volume"`
	OpenInterest *int64 `json:"open_interest"`
	OIChange     *int64 `json:"oi_change"`
}

// ClusterStats rolls up the rows of one named cluster.
type ClusterStats struct {
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	AbsOIChange int64    `json:"abs_oi_change"`
	NetOIChange int64    `json:"net_oi_change"`
}

// Dominance summarises where activity concentrated.
type Dominance struct {
	ActiveCluster string  `json:"active_cluster"`
	ActiveRow     string  `json:"active_tenor"`
	Concentration float64 `json:"concentration"` // Top-2 row share of total absolute change
	RegimeLabel   string  `json:"regime_label"`
}

// CurveQuality records missing rows and free-text notes.
type CurveQuality struct {
	MissingRows []string `json:"missing_tenors"`
	IsComplete  bool     `json:"is_complete"`
	Notes       []string `json:"notes"`
}

// CurveAggregate is the rolled-up view of a rates curve or an equity flow table.
type CurveAggregate struct {
	Layout    string         `json:"layout"`
	Rows      map[string]Row `json:"tenors"`
	Order     []string       `json:"order"`
	Clusters  []ClusterStats `json:"clusters"`
	Dominance Dominance      `json:"dominance"`
	Quality   CurveQuality   `json:"quality"`
}

// Cluster returns the named cluster, if present.
func (c CurveAggregate) Cluster(name string) (ClusterStats, bool) {
	for _, cl := range c.Clusters {
		if cl.Name == name {
			return cl, true
		}
	}
	return ClusterStats{}, false
}

// Section09Row is a raw interest rate futures row from CME bulletin Section 09.
// All values are raw tokens: "UNCH" means zero and "----" means missing.
type Section09Row struct {
	RTHVolume    Token `json:"rth_volume"`
	GlobexVolume Token `json:"globex_volume"`
	OpenInterest Token `json:"open_interest"`
	OIChange     Token `json:"oi_change"`
}

// Section09 is the extractor's rates curve document.
type Section09 struct {
	Tenors           map[string]Section09Row `json:"totals"`
	DataQualityNotes []string                `json:"data_quality_notes"`
	IsPreliminary    bool                    `json:"is_preliminary"`
}

// Section11Row is a raw equity index futures row from CME bulletin Section 11.
// OIChange may arrive split into sign and digits, e.g. ["-", "64"].
type Section11Row struct {
	TotalVolume  Token     `json:"total_volume"`
	OpenInterest Token     `json:"open_interest"`
	OIChange     TokenList `json:"oi_change"`
}

// Section11 is the extractor's equity index flows document.
type Section11 struct {
	Products         map[string]Section11Row `json:"products"`
	DataQualityNotes []string                `json:"data_quality_notes"`
}
