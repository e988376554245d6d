package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Parley server URL")
	user := flag.String("user", "cli-user", "User ID for the session")
	position := flag.String("position", "Software Engineer", "Target position to practice for")
	flag.Parse()

	fmt.Println("Parley Practice CLI")
	fmt.Printf("Server: %s | User: %s | Position: %s\n", *server, *user, *position)
	fmt.Println("Type your answers. Commands: /end (finish and get report), /history, exit")
	fmt.Println("---")

	c := &client{server: *server, user: *user}

	sessionID, opening, err := c.start(*position)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start session: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n" + opening)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye! Your session is still open; run again and /end to get your report.")
			return
		}
		if input == "/end" {
			c.end(sessionID)
			return
		}
		if input == "/history" {
			c.history()
			continue
		}

		c.send(sessionID, input)
	}
}

type client struct {
	server string
	user   string
}

func (c *client) do(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.server+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.user)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) start(position string) (string, string, error) {
	var res struct {
		SessionID      string `json:"session_id"`
		Topic          string `json:"topic"`
		OpeningMessage string `json:"opening_message"`
	}
	err := c.do(http.MethodPost, "/api/sessions",
		map[string]string{"target_position": position}, &res)
	return res.SessionID, res.OpeningMessage, err
}

func (c *client) send(sessionID, message string) {
	var res struct {
		Response    string `json:"response"`
		TopicStatus string `json:"topic_status"`
		SessionOver bool   `json:"session_over"`
	}
	err := c.do(http.MethodPost, "/api/sessions/"+sessionID+"/messages",
		map[string]string{"message": message}, &res)
	if err != nil {
		printError("send failed: %v", err)
		return
	}
	fmt.Println("\n" + res.Response)
	if res.SessionOver {
		fmt.Println("\n(Interview over. Use /end to get your full report.)")
	}
}

func (c *client) end(sessionID string) {
	var report struct {
		Feedbacks []struct {
			TopicName    string   `json:"topic_name"`
			Score        int      `json:"score"`
			Strengths    []string `json:"strengths"`
			Improvements []string `json:"improvements"`
			Suggestion   string   `json:"suggestion"`
		} `json:"feedbacks"`
		Recommendations []struct {
			Title  string `json:"title"`
			Reason string `json:"reason"`
			URL    string `json:"url,omitempty"`
		} `json:"recommendations"`
		Summary string `json:"summary"`
	}
	if err := c.do(http.MethodPost, "/api/sessions/"+sessionID+"/end", nil, &report); err != nil {
		printError("end failed: %v", err)
		return
	}

	fmt.Println("\n=== Session Report ===")
	for _, fb := range report.Feedbacks {
		fmt.Printf("\n%s: %d/10\n", fb.TopicName, fb.Score)
		for _, s := range fb.Strengths {
			fmt.Printf("  \033[32m+\033[0m %s\n", s)
		}
		for _, s := range fb.Improvements {
			fmt.Printf("  \033[31m-\033[0m %s\n", s)
		}
		if fb.Suggestion != "" {
			fmt.Printf("  → %s\n", fb.Suggestion)
		}
	}
	fmt.Println("\nRecommendations:")
	for _, r := range report.Recommendations {
		fmt.Printf("  * %s — %s\n", r.Title, r.Reason)
		if r.URL != "" {
			fmt.Printf("    %s\n", r.URL)
		}
	}
	fmt.Println("\n" + report.Summary)
}

func (c *client) history() {
	var sessions []struct {
		ID             string `json:"id"`
		TargetPosition string `json:"target_position"`
		Summary        string `json:"summary"`
		TopicCount     int    `json:"topic_count"`
		EndedAt        string `json:"ended_at"`
	}
	if err := c.do(http.MethodGet, "/api/history", nil, &sessions); err != nil {
		printError("history failed: %v", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No past sessions.")
		return
	}
	fmt.Println("Past sessions:")
	for _, s := range sessions {
		fmt.Printf("  %s  %s (%d topics) — %s\n", s.EndedAt, s.TargetPosition, s.TopicCount, s.Summary)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("\033[31m"+format+"\033[0m\n", args...)
}
