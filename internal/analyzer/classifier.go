package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// Classification is a category assignment with the classifier's confidence
type Classification struct {
	Category   string
	Confidence float64
}

// Classifier assigns a functional category to a table. Implementations must
// be safe for concurrent use; the engine calls them from its worker pool.
type Classifier interface {
	Classify(ctx context.Context, table *models.Table) (Classification, error)
}

// KeywordClassifier is the deterministic rule-based classifier. It is total
// (every table gets a category, Uncategorized as fallback) and never fails.
type KeywordClassifier struct {
	Rules []CategoryRule
}

// Classify matches the ordered keyword rules against the table name and
// its column names. The first matching rule wins; ties between rules are
// broken by declaration order.
func (kc *KeywordClassifier) Classify(_ context.Context, table *models.Table) (Classification, error) {
	haystack := strings.ToLower(table.Name)
	for _, col := range table.Columns {
		haystack += " " + strings.ToLower(col.Name)
	}
	for _, rule := range kc.Rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(haystack, keyword) {
				return Classification{Category: rule.Category, Confidence: 1.0}, nil
			}
		}
	}
	return Classification{Category: Uncategorized, Confidence: 0}, nil
}

// RemoteClassifier consults an Ollama-compatible generation endpoint for
// tables the keyword rules cannot place. Its answers are advisory: callers
// fall back to the keyword result on any failure.
type RemoteClassifier struct {
	URL     string
	Model   string
	Timeout time.Duration
	Client  *http.Client
}

// NewRemoteClassifier creates a remote classifier with the given per-call
// timeout
func NewRemoteClassifier(url, model string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{
		URL:     url,
		Model:   model,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Classify sends the table's shape to the endpoint and expects a single
// category label back
func (rc *RemoteClassifier) Classify(ctx context.Context, table *models.Table) (Classification, error) {
	if rc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(generateRequest{
		Model:  rc.Model,
		Prompt: classifyPrompt(table),
		Stream: false,
	})
	if err != nil {
		return Classification{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.URL, bytes.NewReader(body))
	if err != nil {
		return Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.Client.Do(req)
	if err != nil {
		return Classification{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Classification{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}
	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return Classification{}, err
	}

	label := strings.ToLower(strings.TrimSpace(genResp.Response))
	label = strings.Trim(label, "\"'.")
	if !ValidCategory(label) {
		return Classification{}, fmt.Errorf("classifier returned unknown category %q", label)
	}
	return Classification{Category: label, Confidence: 0.5}, nil
}

func classifyPrompt(table *models.Table) string {
	var b strings.Builder
	b.WriteString("Classify the database table into exactly one of these categories: ")
	b.WriteString(strings.Join(Categories, ", "))
	b.WriteString(".\nRespond with the category name only.\n\nTable: ")
	b.WriteString(table.Name)
	b.WriteString("\nColumns:")
	for _, col := range table.Columns {
		b.WriteString(" ")
		b.WriteString(col.Name)
	}
	b.WriteString("\n")
	return b.String()
}
