package tools

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJobBoardSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "backend engineer" {
			t.Errorf("q = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"listings": []Listing{{Title: "Backend Engineer", Company: "Acme", URL: "https://jobs.example/1"}},
		})
	}))
	defer srv.Close()

	c := NewJobBoardClient(srv.URL, "test-key")
	listings, err := c.Search(context.Background(), "backend engineer", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(listings) != 1 || listings[0].Company != "Acme" {
		t.Errorf("listings = %+v", listings)
	}
}

func TestJobBoardErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewJobBoardClient(srv.URL, "")
	if _, err := c.Search(context.Background(), "x", 1); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestReviewLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("company"); got != "Acme" {
			t.Errorf("company = %q", got)
		}
		json.NewEncoder(w).Encode(CompanyReview{Company: "Acme", Rating: 4.2, Summary: "solid"})
	}))
	defer srv.Close()

	c := NewReviewClient(srv.URL, "")
	review, err := c.Lookup(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if review.Rating != 4.2 {
		t.Errorf("review = %+v", review)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 2}, []float32{1, 2, 3}, 0},
		{nil, nil, 0},
	}
	for _, tt := range tests {
		if got := cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

type fakeEmbedder struct{ vectors [][]float32 }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f.vectors, nil
}
func (f *fakeEmbedder) Dimension() int { return 2 }

func TestRecommendationToolsRegistersAvailable(t *testing.T) {
	matcher := NewSkillMatcher(&fakeEmbedder{vectors: [][]float32{{1, 0}, {1, 0}}})
	reg := RecommendationTools(nil, nil, matcher)

	names := reg.Names()
	if len(names) != 1 || names[0] != "skill_match" {
		t.Errorf("names = %v", names)
	}

	tool, _ := reg.Get("skill_match")
	out, err := tool.Run(context.Background(), map[string]interface{}{
		"position": "backend", "skills": []interface{}{"go"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if score := out.(map[string]interface{})["score"].(float64); score < 0.99 {
		t.Errorf("score = %v", score)
	}
}
