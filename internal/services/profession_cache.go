package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/events"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	log "github.com/sirupsen/logrus"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type EmbeddingStore interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

type professionSource interface {
	GetAll(ctx context.Context) ([]entities.Profession, error)
}

type stopWordSource interface {
	GetAll(ctx context.Context) ([]entities.StopWord, error)
}

type cachedProfession struct {
	entities.Profession
	embedding []float32
}

type stopWordPattern struct {
	word    string
	pattern *regexp.Regexp
}

// ProfessionCache holds professions with keywords, stop words and description embeddings
// for the classifier. It reloads whenever the classifier configuration changes.
type ProfessionCache struct {
	professionsRepo professionSource
	stopWordsRepo   stopWordSource
	embedder        Embedder
	store           EmbeddingStore

	mu          sync.RWMutex
	professions []cachedProfession
	stopWords   []stopWordPattern
	embeddings  map[string][]float32
}

// NewProfessionCache accepts a nil embedder and store, similarity is then never computed.
func NewProfessionCache(professions professionSource, stopWords stopWordSource, embedder Embedder,
	store EmbeddingStore) *ProfessionCache {
	return &ProfessionCache{
		professionsRepo: professions,
		stopWordsRepo:   stopWords,
		embedder:        embedder,
		store:           store,
		embeddings:      map[string][]float32{},
	}
}

func (c *ProfessionCache) Subscribe(bus EventBus.Bus) error {
	return bus.Subscribe(events.ClassifierConfigChangedTopic, c.onConfigChanged)
}

func (c *ProfessionCache) onConfigChanged(event events.ClassifierConfigChanged) {
	if err := c.Reload(context.Background()); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to reload classifier config after %s: %v", event.Reason, err)
	}
}

func (c *ProfessionCache) Reload(ctx context.Context) error {
	professions, err := c.professionsRepo.GetAll(ctx)
	if err != nil {
		return err
	}
	stopWords, err := c.stopWordsRepo.GetAll(ctx)
	if err != nil {
		return err
	}

	patterns := make([]stopWordPattern, 0, len(stopWords))
	for _, sw := range stopWords {
		pattern, err := compileStopWord(sw.Word)
		if err != nil {
			log.Warnf("skipping stop word %q: %v", sw.Word, err)
			continue
		}
		patterns = append(patterns, stopWordPattern{word: sw.Word, pattern: pattern})
	}

	cached := make([]cachedProfession, 0, len(professions))
	embeddings := make(map[string][]float32, len(professions))
	for _, p := range professions {
		cp := cachedProfession{Profession: p}
		if p.Description != "" && c.embedder != nil {
			key := p.ID.String() + ":" + entities.Fingerprint(p.Description)
			cp.embedding = c.descriptionEmbedding(ctx, key, p.Description)
			if cp.embedding != nil {
				embeddings[key] = cp.embedding
			}
		}
		cached = append(cached, cp)
	}

	c.mu.Lock()
	c.professions = cached
	c.stopWords = patterns
	c.embeddings = embeddings
	c.mu.Unlock()

	log.Infof("classifier config loaded: %d professions, %d stop words", len(cached), len(patterns))
	return nil
}

func (c *ProfessionCache) descriptionEmbedding(ctx context.Context, key, description string) []float32 {
	c.mu.RLock()
	vector, ok := c.embeddings[key]
	c.mu.RUnlock()
	if ok {
		return vector
	}

	if c.store != nil {
		vector, found, err := c.store.Get(ctx, key)
		if err != nil {
			log.Warnf("failed to read embedding %s from store: %v", key, err)
		} else if found {
			return vector
		}
	}

	vector, err := c.embedder.Embed(ctx, description)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Errorf("failed to embed profession description: %v", err)
		return nil
	}

	if c.store != nil {
		if err = c.store.Set(ctx, key, vector); err != nil {
			log.Warnf("failed to store embedding %s: %v", key, err)
		}
	}
	return vector
}

func (c *ProfessionCache) snapshot() ([]cachedProfession, []stopWordPattern) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.professions, c.stopWords
}

const wordBoundary = `[^\p{L}\p{N}_]`

// compileStopWord matches the word or phrase as a whole, case-insensitively, with any
// whitespace between the words of a phrase.
func compileStopWord(word string) (*regexp.Regexp, error) {
	parts := strings.Fields(word)
	if len(parts) == 0 {
		return nil, errors.New("empty stop word")
	}
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(`(?i)(^|` + wordBoundary + `)` + strings.Join(parts, `\s+`) + `($|` + wordBoundary + `)`)
}
