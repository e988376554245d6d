package skillgraph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/interview"
)

// Graph records what each user has practiced and demonstrated across
// sessions: (User)-[:PRACTICED]->(Topic) and (User)-[:DEMONSTRATED]->(Skill)
// with depth scores. It feeds longer-term recommendations; the live session
// flow never depends on it.
type Graph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// SkillEdge is one demonstrated skill with its best observed depth.
type SkillEdge struct {
	Skill string
	Depth int
}

// NewGraph connects to Neo4j.
func NewGraph(uri, user, password string, logger *zap.Logger) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Graph{driver: driver, logger: logger}, nil
}

// Close shuts down the driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// Ping verifies connectivity.
func (g *Graph) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// RecordSession merges the session's completed topics and skill claims into
// the user's graph. Depth only moves up: a later shallow answer never erases
// evidence of earlier depth.
func (g *Graph) RecordSession(ctx context.Context, sess *interview.PracticeSession) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, topic := range sess.CompletedTopics {
		_, err := session.Run(ctx,
			`MERGE (u:User {id: $userId})
			 MERGE (t:Topic {name: $topic})
			 MERGE (u)-[p:PRACTICED]->(t)
			 ON CREATE SET p.times = 1, p.last_status = $status
			 ON MATCH SET p.times = p.times + 1, p.last_status = $status`,
			map[string]interface{}{
				"userId": sess.UserID,
				"topic":  topic.Name,
				"status": string(topic.Status),
			})
		if err != nil {
			return fmt.Errorf("record topic %s: %w", topic.Name, err)
		}

		for _, point := range topic.CollectedInfo {
			if point.Type != interview.InfoSkillClaim {
				continue
			}
			_, err := session.Run(ctx,
				`MERGE (u:User {id: $userId})
				 MERGE (s:Skill {name: $skill})
				 MERGE (u)-[d:DEMONSTRATED]->(s)
				 ON CREATE SET d.depth = $depth
				 ON MATCH SET d.depth = CASE WHEN $depth > d.depth THEN $depth ELSE d.depth END`,
				map[string]interface{}{
					"userId": sess.UserID,
					"skill":  point.Summary,
					"depth":  point.Depth,
				})
			if err != nil {
				return fmt.Errorf("record skill %s: %w", point.Summary, err)
			}
		}
	}
	return nil
}

// WeakSkills returns the user's shallowest demonstrated skills, the ones
// worth practicing next.
func (g *Graph) WeakSkills(ctx context.Context, userID string, limit int) ([]SkillEdge, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (u:User {id: $userId})-[d:DEMONSTRATED]->(s:Skill)
		 RETURN s.name AS skill, d.depth AS depth
		 ORDER BY d.depth ASC LIMIT $limit`,
		map[string]interface{}{"userId": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("query weak skills: %w", err)
	}

	var edges []SkillEdge
	for result.Next(ctx) {
		rec := result.Record()
		skill, _ := rec.Get("skill")
		depth, _ := rec.Get("depth")
		edge := SkillEdge{}
		if s, ok := skill.(string); ok {
			edge.Skill = s
		}
		if d, ok := depth.(int64); ok {
			edge.Depth = int(d)
		}
		edges = append(edges, edge)
	}
	return edges, result.Err()
}

// PracticedTopics returns topic names the user has seen across all
// sessions, for cross-session anti-repetition.
func (g *Graph) PracticedTopics(ctx context.Context, userID string) ([]string, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (u:User {id: $userId})-[:PRACTICED]->(t:Topic)
		 RETURN t.name AS name`,
		map[string]interface{}{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("query practiced topics: %w", err)
	}

	var names []string
	for result.Next(ctx) {
		if name, ok := result.Record().Get("name"); ok {
			if s, ok := name.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names, result.Err()
}
