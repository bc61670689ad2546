package graph

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agenthands/ctigraph/internal/core/community"
	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/driver"
	"github.com/agenthands/ctigraph/internal/metrics"
)

var ErrActorNotFound = errors.New("threat actor not found")

type LoadResult struct {
	Query                string `json:"query"`
	Clauses              int    `json:"clauses"`
	NodesCreated         int    `json:"nodes_created"`
	RelationshipsCreated int    `json:"relationships_created"`
}

// Loader writes extracted parameters into the graph database.
type Loader struct {
	Driver driver.GraphDriver
}

func NewLoader(d driver.GraphDriver) *Loader {
	return &Loader{Driver: d}
}

func (l *Loader) EnsureSchema(ctx context.Context) error {
	return l.Driver.BuildIndices(ctx)
}

func (l *Loader) Load(ctx context.Context, p model.Parameters) (*LoadResult, error) {
	stmt, err := Build(p)
	if err != nil {
		return nil, err
	}

	res, err := l.Driver.ExecuteQuery(ctx, stmt.Query, stmt.Params)
	if err != nil {
		metrics.GraphLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}
	metrics.GraphLoads.WithLabelValues("ok").Inc()

	out := &LoadResult{Query: stmt.Query, Clauses: len(stmt.Clauses)}
	if res.Summary != nil {
		counters := res.Summary.Counters()
		out.NodesCreated = counters.NodesCreated()
		out.RelationshipsCreated = counters.RelationshipsCreated()
	}
	log.Printf("Loaded %d threat actors: %d nodes, %d relationships created",
		len(stmt.Params["threat_actors"].([]interface{})), out.NodesCreated, out.RelationshipsCreated)
	return out, nil
}

// Profile is the set of entities linked to one threat actor.
type Profile struct {
	Actor string              `json:"actor"`
	Links map[string][]string `json:"links"`
}

// ActorProfile returns the entities attached to a threat actor, keyed by relationship type.
func (l *Loader) ActorProfile(ctx context.Context, name string) (*Profile, error) {
	res, err := l.Driver.ExecuteQuery(ctx, driver.ThreatActorProfileQuery, map[string]interface{}{"name": name})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrActorNotFound
	}

	profile := &Profile{Actor: name, Links: map[string][]string{}}
	for _, rec := range res.Records {
		relation, _ := rec.Get("relation")
		value, _ := rec.Get("value")
		rel, ok1 := relation.(string)
		val, ok2 := value.(string)
		if !ok1 || !ok2 {
			continue
		}
		profile.Links[rel] = append(profile.Links[rel], val)
	}
	return profile, nil
}

// Stats counts threat-intelligence nodes per label.
func (l *Loader) Stats(ctx context.Context) (map[string]int64, error) {
	res, err := l.Driver.ExecuteQuery(ctx, driver.CountEntitiesQuery, nil)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(res.Records))
	for _, rec := range res.Records {
		label, _ := rec.Get("label")
		total, _ := rec.Get("total")
		if name, ok := label.(string); ok {
			n, _ := total.(int64)
			stats[name] = n
		}
	}
	return stats, nil
}

// ActorClusters groups threat actors that share at least minShared indicators,
// malware families or techniques.
func (l *Loader) ActorClusters(ctx context.Context, minShared int) ([]community.Cluster, error) {
	res, err := l.Driver.ExecuteQuery(ctx, driver.ActorLinksQuery, nil)
	if err != nil {
		return nil, err
	}

	links := make([]community.Link, 0, len(res.Records))
	for _, rec := range res.Records {
		actor, _ := rec.Get("actor")
		entity, _ := rec.Get("entity")
		a, ok1 := actor.(string)
		e, ok2 := entity.(string)
		if ok1 && ok2 {
			links = append(links, community.Link{Actor: a, Entity: e})
		}
	}
	return community.ActorClusters(links, minShared), nil
}
