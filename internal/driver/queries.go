package driver

// Clauses of the load statement. Each clause after the first rebinds the actor rows
// produced by UnwindThreatActorsClause.
const (
	UnwindThreatActorsClause = "UNWIND $threat_actors AS actor_name MERGE (actor:ThreatActor {name: actor_name})"

	LinkIPAddressesClause = "WITH DISTINCT actor UNWIND $IoCs.ipv4s AS ip MERGE (ioc:IPAddress {address: ip}) MERGE (actor)-[:ASSOCIATED_WITH]->(ioc)"

	LinkDomainsClause = "WITH DISTINCT actor UNWIND $IoCs.domains AS domain MERGE (dom:Domain {name: domain}) MERGE (actor)-[:ASSOCIATED_WITH]->(dom)"

	LinkTacticsClause = "WITH DISTINCT actor UNWIND $ttps.Tactics AS tactic_array UNWIND tactic_array AS tactic_name MERGE (t:Tactic {name: tactic_name}) MERGE (actor)-[:USES_TACTIC]->(t)"

	LinkTechniquesClause = "WITH DISTINCT actor UNWIND $ttps.Techniques AS technique_array UNWIND technique_array AS technique_name MERGE (tech:Technique {name: technique_name}) MERGE (actor)-[:USES_TECHNIQUE]->(tech)"

	LinkMalwareClause = "WITH DISTINCT actor UNWIND $malware AS malware_data MERGE (m:Malware {name: malware_data.Name}) MERGE (actor)-[:DEPLOYS]->(m)"

	LinkTargetsClause = "WITH DISTINCT actor UNWIND $targeted_entities AS entity MERGE (target:TargetEntity {name: entity}) MERGE (actor)-[:TARGETS]->(target)"
)

var SchemaQueries = []string{
	"CREATE CONSTRAINT threat_actor_name IF NOT EXISTS FOR (n:ThreatActor) REQUIRE n.name IS UNIQUE",
	"CREATE CONSTRAINT ip_address IF NOT EXISTS FOR (n:IPAddress) REQUIRE n.address IS UNIQUE",
	"CREATE CONSTRAINT domain_name IF NOT EXISTS FOR (n:Domain) REQUIRE n.name IS UNIQUE",
	"CREATE CONSTRAINT tactic_name IF NOT EXISTS FOR (n:Tactic) REQUIRE n.name IS UNIQUE",
	"CREATE CONSTRAINT technique_name IF NOT EXISTS FOR (n:Technique) REQUIRE n.name IS UNIQUE",
	"CREATE CONSTRAINT malware_name IF NOT EXISTS FOR (n:Malware) REQUIRE n.name IS UNIQUE",
	"CREATE CONSTRAINT target_entity_name IF NOT EXISTS FOR (n:TargetEntity) REQUIRE n.name IS UNIQUE",
}

const (
	ThreatActorProfileQuery = `
		MATCH (actor:ThreatActor {name: $name})
		OPTIONAL MATCH (actor)-[r]->(n)
		RETURN type(r) AS relation, labels(n)[0] AS label, coalesce(n.name, n.address) AS value
		ORDER BY relation, value
	`

	CountEntitiesQuery = `
		MATCH (n)
		WHERE n:ThreatActor OR n:IPAddress OR n:Domain OR n:Tactic OR n:Technique OR n:Malware OR n:TargetEntity
		RETURN labels(n)[0] AS label, count(n) AS total
		ORDER BY label
	`

	// Tactics and targets are too generic to indicate a shared operator.
	ActorLinksQuery = `
		MATCH (actor:ThreatActor)-[r:ASSOCIATED_WITH|DEPLOYS|USES_TECHNIQUE]->(n)
		RETURN actor.name AS actor, labels(n)[0] + ':' + coalesce(n.name, n.address) AS entity
	`
)
