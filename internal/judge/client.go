package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client calls the scoring API's head-to-head comparison endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type compareRequest struct {
	ImageA string `json:"imageA"`
	ImageB string `json:"imageB"`
	Mode   string `json:"mode"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Compare(ctx context.Context, artifactA, artifactB, mode string) (*Verdict, error) {
	reqBody := compareRequest{
		ImageA: artifactA,
		ImageB: artifactB,
		Mode:   mode,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/compare", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call judge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Judge API error: status %d, body: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("judge API returned status %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("failed to decode judge response: %w", err)
	}

	if verdict.Winner != WinnerTie && verdict.Winner != WinnerFirst && verdict.Winner != WinnerSecond {
		return nil, fmt.Errorf("judge returned unknown winner value %d", verdict.Winner)
	}

	verdict.ScoreA = clampScore(verdict.ScoreA)
	verdict.ScoreB = clampScore(verdict.ScoreB)
	return &verdict, nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
