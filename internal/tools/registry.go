package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/agent"
)

// RecommendationTools builds the tool set for the recommendation agent.
// Any client may be nil; its tool is simply not registered, and the agent
// works with whatever remains.
func RecommendationTools(jobs *JobBoardClient, reviews *ReviewClient, matcher *SkillMatcher) *agent.Registry {
	reg := agent.NewRegistry()

	if jobs != nil {
		reg.Register(&agent.Tool{
			Name:          "search_jobs",
			Description:   "Search job listings matching a query.",
			ParamSchema:   map[string]interface{}{"query": "string", "limit": "number"},
			EstimatedTime: 5 * time.Second,
			Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				query, _ := params["query"].(string)
				if query == "" {
					return nil, fmt.Errorf("query is required")
				}
				limit := 5
				if l, ok := params["limit"].(float64); ok && l > 0 {
					limit = int(l)
				}
				listings, err := jobs.Search(ctx, query, limit)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"listings": listings}, nil
			},
		})
	}

	if reviews != nil {
		reg.Register(&agent.Tool{
			Name:          "company_reviews",
			Description:   "Look up employee review sentiment for a company.",
			ParamSchema:   map[string]interface{}{"company": "string"},
			EstimatedTime: 5 * time.Second,
			Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				company, _ := params["company"].(string)
				if company == "" {
					return nil, fmt.Errorf("company is required")
				}
				return reviews.Lookup(ctx, company)
			},
		})
	}

	if matcher != nil {
		reg.Register(&agent.Tool{
			Name:          "skill_match",
			Description:   "Score how well a list of skills matches a position description (0 to 1).",
			ParamSchema:   map[string]interface{}{"position": "string", "skills": "array of string"},
			EstimatedTime: 3 * time.Second,
			Run: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				position, _ := params["position"].(string)
				var skills []string
				if raw, ok := params["skills"].([]interface{}); ok {
					for _, s := range raw {
						if str, ok := s.(string); ok {
							skills = append(skills, str)
						}
					}
				}
				score, err := matcher.Score(ctx, position, skills)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"score": score}, nil
			},
		})
	}

	return reg
}
