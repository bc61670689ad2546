package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Category names double as the top-level JSON keys the chat model is asked to return.
const (
	CategoryThreatActors     = "threat_actors"
	CategoryTTPs             = "ttps"
	CategoryMalware          = "malware"
	CategoryTargetedEntities = "targeted_entities"
)

// Categories is the extraction order.
var Categories = []string{
	CategoryThreatActors,
	CategoryTTPs,
	CategoryMalware,
	CategoryTargetedEntities,
}

type IoCs struct {
	IPv4s   []string `json:"ipv4s,omitempty"`
	Domains []string `json:"domains,omitempty"`
}

// TTPs matches the nested list shape the ttps prompt asks for.
type TTPs struct {
	Tactics    [][]string `json:"Tactics,omitempty"`
	Techniques [][]string `json:"Techniques,omitempty"`
}

// UnmarshalJSON also accepts flat lists and bare names, wrapping each name
// into a one-element group.
func (t *TTPs) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tactics    json.RawMessage `json:"Tactics"`
		Techniques json.RawMessage `json:"Techniques"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tactics, err := toGroups(raw.Tactics)
	if err != nil {
		return fmt.Errorf("tactics: %w", err)
	}
	techniques, err := toGroups(raw.Techniques)
	if err != nil {
		return fmt.Errorf("techniques: %w", err)
	}
	t.Tactics, t.Techniques = tactics, techniques
	return nil
}

func toGroups(data json.RawMessage) ([][]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return [][]string{{name}}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(items))
	for _, item := range items {
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, []string{name})
			continue
		}
		var group []string
		if err := json.Unmarshal(item, &group); err != nil {
			return nil, fmt.Errorf("entry %s is neither a name nor a list of names", item)
		}
		out = append(out, group)
	}
	return out, nil
}

type Malware struct {
	Name string `json:"Name"`
}

// Parameters is the parameter set consumed by the graph loader.
// A nil field means the key was absent.
type Parameters struct {
	ThreatActors     []string  `json:"threat_actors,omitempty"`
	IoCs             *IoCs     `json:"IoCs,omitempty"`
	TTPs             *TTPs     `json:"ttps,omitempty"`
	Malware          []Malware `json:"malware,omitempty"`
	TargetedEntities []string  `json:"targeted_entities,omitempty"`
}

// Normalize trims names, drops blanks and removes case-insensitive duplicates
// while keeping first-seen order and spelling.
func (p Parameters) Normalize() Parameters {
	out := Parameters{
		ThreatActors:     dedupe(p.ThreatActors),
		TargetedEntities: dedupe(p.TargetedEntities),
	}
	if p.IoCs != nil {
		out.IoCs = &IoCs{IPv4s: dedupe(p.IoCs.IPv4s), Domains: dedupe(p.IoCs.Domains)}
	}
	if p.TTPs != nil {
		out.TTPs = &TTPs{Tactics: dedupeNested(p.TTPs.Tactics), Techniques: dedupeNested(p.TTPs.Techniques)}
	}
	if p.Malware != nil {
		names := make([]string, 0, len(p.Malware))
		for _, m := range p.Malware {
			names = append(names, m.Name)
		}
		names = dedupe(names)
		out.Malware = make([]Malware, 0, len(names))
		for _, n := range names {
			out.Malware = append(out.Malware, Malware{Name: n})
		}
	}
	return out
}

// Empty reports whether no field carries a usable value.
func (p Parameters) Empty() bool {
	n := p.Normalize()
	if len(n.ThreatActors) > 0 || len(n.Malware) > 0 || len(n.TargetedEntities) > 0 {
		return false
	}
	if n.IoCs != nil && (len(n.IoCs.IPv4s) > 0 || len(n.IoCs.Domains) > 0) {
		return false
	}
	if n.TTPs != nil && (len(n.TTPs.Tactics) > 0 || len(n.TTPs.Techniques) > 0) {
		return false
	}
	return true
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// dedupeNested keeps the list-of-lists shape but drops empty inner lists,
// since an empty UNWIND would discard the actor row.
func dedupeNested(in [][]string) [][]string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool)
	out := make([][]string, 0, len(in))
	for _, group := range in {
		var kept []string
		for _, s := range group {
			s = strings.TrimSpace(s)
			key := strings.ToLower(s)
			if s == "" || seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, s)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
