package signal

import (
	"context"

	"github.com/patou-app/moderation-cli/internal/model"
	"github.com/patou-app/moderation-cli/pkg/openai"
)

// Classifier wraps the moderation classifier call. No local retry: the
// engine treats any failure here as a hard failure of the evaluation.
type Classifier struct {
	client openai.Client
}

// NewClassifier creates a Classifier.
func NewClassifier(client openai.Client) *Classifier {
	return &Classifier{client: client}
}

// Classify runs the text through the classifier. Any failure is wrapped
// as a *ClassifierError.
func (c *Classifier) Classify(ctx context.Context, text string) (*model.ModerationScoreSet, error) {
	result, err := c.client.Moderate(ctx, text)
	if err != nil {
		return nil, &ClassifierError{Err: err}
	}

	return &model.ModerationScoreSet{
		Flagged:    result.Flagged,
		Categories: result.Categories,
		Scores:     result.Scores,
	}, nil
}
