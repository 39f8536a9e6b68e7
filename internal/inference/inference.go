// Package inference calls the remote soil image classifier.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"
)

// ErrUnavailable is returned when no classifier URL is configured.
var ErrUnavailable = errors.New("inference endpoint not configured")

// Prediction is the classifier response.
type Prediction struct {
	Class         string             `json:"predicted_class"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Ranked is one class with its probability.
type Ranked struct {
	Class       string
	Probability float64
}

// Ranking returns the probabilities ordered from most to least likely.
func (p *Prediction) Ranking() []Ranked {
	out := make([]Ranked, 0, len(p.Probabilities))
	for c, v := range p.Probabilities {
		out = append(out, Ranked{Class: c, Probability: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// Classifier labels soil images.
type Classifier interface {
	Classify(ctx context.Context, filename string, image []byte) (*Prediction, error)
}

// Client posts images to an HTTP inference endpoint as multipart field "file".
type Client struct {
	URL  string
	HTTP *http.Client
}

// New returns a Client for url.
func New(url string, timeout time.Duration) *Client {
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

// Classify sends image and decodes the prediction.
func (c *Client) Classify(ctx context.Context, filename string, image []byte) (*Prediction, error) {
	if c.URL == "" {
		return nil, ErrUnavailable
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if p.Class == "" {
		return nil, fmt.Errorf("decode prediction: missing predicted_class")
	}
	if p.Confidence == 0 && p.Probabilities != nil {
		p.Confidence = p.Probabilities[p.Class]
	}
	return &p, nil
}
