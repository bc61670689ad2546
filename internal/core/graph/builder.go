package graph

import (
	"errors"
	"strings"

	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/driver"
)

var (
	ErrNoParameters   = errors.New("no valid parameters provided to construct query")
	ErrNoThreatActors = errors.New("threat_actors are required to link IoCs, TTPs, malware or targeted entities")
)

// Statement is a ready-to-run load statement.
type Statement struct {
	Query   string                 `json:"query"`
	Clauses []string               `json:"clauses"`
	Params  map[string]interface{} `json:"params"`
}

// Build assembles one MERGE statement from the keys present in p. Empty lists are
// treated as absent. Every clause after the first links to the threat actors bound
// by the first, so relationship keys without threat actors are rejected.
func Build(p model.Parameters) (*Statement, error) {
	p = p.Normalize()

	var links []string
	params := map[string]interface{}{}

	if p.IoCs != nil {
		iocs := map[string]interface{}{}
		if len(p.IoCs.IPv4s) > 0 {
			links = append(links, driver.LinkIPAddressesClause)
			iocs["ipv4s"] = toList(p.IoCs.IPv4s)
		}
		if len(p.IoCs.Domains) > 0 {
			links = append(links, driver.LinkDomainsClause)
			iocs["domains"] = toList(p.IoCs.Domains)
		}
		if len(iocs) > 0 {
			params["IoCs"] = iocs
		}
	}

	if p.TTPs != nil {
		ttps := map[string]interface{}{}
		if len(p.TTPs.Tactics) > 0 {
			links = append(links, driver.LinkTacticsClause)
			ttps["Tactics"] = toNestedList(p.TTPs.Tactics)
		}
		if len(p.TTPs.Techniques) > 0 {
			links = append(links, driver.LinkTechniquesClause)
			ttps["Techniques"] = toNestedList(p.TTPs.Techniques)
		}
		if len(ttps) > 0 {
			params["ttps"] = ttps
		}
	}

	if len(p.Malware) > 0 {
		links = append(links, driver.LinkMalwareClause)
		malware := make([]interface{}, 0, len(p.Malware))
		for _, m := range p.Malware {
			malware = append(malware, map[string]interface{}{"Name": m.Name})
		}
		params["malware"] = malware
	}

	if len(p.TargetedEntities) > 0 {
		links = append(links, driver.LinkTargetsClause)
		params["targeted_entities"] = toList(p.TargetedEntities)
	}

	if len(p.ThreatActors) == 0 {
		if len(links) > 0 {
			return nil, ErrNoThreatActors
		}
		return nil, ErrNoParameters
	}
	params["threat_actors"] = toList(p.ThreatActors)

	clauses := append([]string{driver.UnwindThreatActorsClause}, links...)
	return &Statement{
		Query:   strings.Join(clauses, "\n"),
		Clauses: clauses,
		Params:  params,
	}, nil
}

// IsValidationError reports whether err came from Build rejecting its input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoParameters) || errors.Is(err, ErrNoThreatActors)
}

func toList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toNestedList(in [][]string) []interface{} {
	out := make([]interface{}, len(in))
	for i, group := range in {
		out[i] = toList(group)
	}
	return out
}
