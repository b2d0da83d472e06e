package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/metrics"
	log "github.com/sirupsen/logrus"
)

type ClassifierSettings struct {
	Threshold       float64
	EmbeddingWeight float64
}

type Classifier struct {
	cache    *ProfessionCache
	embedder Embedder
	settings ClassifierSettings
}

func NewClassifier(cache *ProfessionCache, embedder Embedder, settings ClassifierSettings) *Classifier {
	return &Classifier{cache: cache, embedder: embedder, settings: settings}
}

// Classify blocks the text when any stop word occurs in it, otherwise scores every
// profession and returns those scoring above the threshold, best first.
func (c *Classifier) Classify(ctx context.Context, text string) (entities.Classification, error) {
	start := time.Now()
	defer func() { metrics.ClassificationDuration.Observe(time.Since(start).Seconds()) }()

	professions, stopWords := c.cache.snapshot()

	var blockedBy []string
	for _, sw := range stopWords {
		if sw.pattern.MatchString(text) {
			blockedBy = append(blockedBy, sw.word)
		}
	}
	if len(blockedBy) > 0 {
		return entities.Classification{Blocked: true, StopWords: blockedBy}, nil
	}

	if err := ctx.Err(); err != nil {
		return entities.Classification{}, err
	}

	textEmbedding := c.textEmbedding(ctx, text, professions)
	normalized := entities.NormalizeText(text)

	var matches []entities.ProfessionScore
	for _, p := range professions {
		score := entities.ProfessionScore{ProfessionID: p.ID, Name: p.Name}
		for _, k := range p.Keywords {
			if k.Word != "" && strings.Contains(normalized, strings.ToLower(k.Word)) {
				score.Keyword += k.Weight
			}
		}
		if textEmbedding != nil && p.embedding != nil {
			score.Similarity = cosineSimilarity(textEmbedding, p.embedding)
		}
		score.Total = score.Keyword + score.Similarity*c.settings.EmbeddingWeight

		if score.Total > c.settings.Threshold {
			matches = append(matches, score)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Total > matches[j].Total })
	return entities.Classification{Matches: matches}, nil
}

func (c *Classifier) textEmbedding(ctx context.Context, text string, professions []cachedProfession) []float32 {
	if c.embedder == nil {
		return nil
	}
	hasEmbedding := false
	for _, p := range professions {
		if p.embedding != nil {
			hasEmbedding = true
			break
		}
	}
	if !hasEmbedding {
		return nil
	}

	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Errorf("failed to embed message, scoring by keywords only: %v", err)
		return nil
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
