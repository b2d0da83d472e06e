package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrBufferFull = errors.New("loki buffer is full")

type Logger interface {
	Error(msg string, args ...any)
}

type Config struct {
	// Url of the push endpoint, e.g. https://example-prod.grafana.net/loki/api/v1/push
	Url string `validate:"required,url"`

	// BatchMaxSize is the maximum number of log lines sent in one request
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the maximum time an entry waits before being sent
	BatchMaxWait time.Duration `validate:"gte=1"`

	// BufferSize bounds entries queued between Push and the batching goroutine
	BufferSize int `validate:"gte=1"`

	// Labels are attached to every stream
	Labels map[string]string

	TenantKey   string
	TenantValue string

	Username string
	Password string
}

func (cfg *Config) setDefaults() {
	if cfg.BatchMaxSize == 0 {
		cfg.BatchMaxSize = 1000
	}
	if cfg.BatchMaxWait == 0 {
		cfg.BatchMaxWait = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 4096
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}

type LogEntry struct {
	Time      time.Time `json:"-"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Caller    string    `json:"caller,omitempty"`
	ErrorType string    `json:"error_type,omitempty"`
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Pusher batches entries and ships them to Loki, one stream per level.
type Pusher struct {
	config    Config
	ctx       context.Context
	cancel    context.CancelFunc
	client    *http.Client
	entries   chan LogEntry
	waitGroup sync.WaitGroup
	batch     []LogEntry
	logger    Logger
	stopOnce  sync.Once
}

func New(ctx context.Context, cfg Config, logger Logger) (*Pusher, error) {

	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pusher{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		client:  &http.Client{Timeout: 10 * time.Second},
		entries: make(chan LogEntry, cfg.BufferSize),
		batch:   make([]LogEntry, 0, cfg.BatchMaxSize),
		logger:  logger,
	}

	p.waitGroup.Add(1)
	go p.run()
	return p, nil
}

// Push never blocks the caller: when the buffer is full the entry is dropped.
func (p *Pusher) Push(e LogEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case p.entries <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Stop flushes the pending batch and waits for the batching goroutine.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.waitGroup.Wait()
	})
}

func (p *Pusher) run() {
	defer p.waitGroup.Done()

	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(p.batch) == 0 {
			return
		}
		if err := p.send(ctx); err != nil {
			p.logger.Error("failed to send logs", "error", err)
		}
		p.batch = p.batch[:0]
	}

	for {
		select {
		case <-p.ctx.Done():
			for {
				select {
				case entry := <-p.entries:
					p.batch = append(p.batch, entry)
				default:
					ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
					flush(ctx)
					cancel()
					return
				}
			}
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
			if len(p.batch) >= p.config.BatchMaxSize {
				flush(p.ctx)
			}
		case <-ticker.C:
			flush(p.ctx)
		}
	}
}

func (p *Pusher) buildRequest() pushRequest {
	byLevel := map[string]*stream{}
	var order []string

	for _, entry := range p.batch {
		s, ok := byLevel[entry.Level]
		if !ok {
			labels := make(map[string]string, len(p.config.Labels)+1)
			for k, v := range p.config.Labels {
				labels[k] = v
			}
			labels["level"] = entry.Level
			s = &stream{Stream: labels}
			byLevel[entry.Level] = s
			order = append(order, entry.Level)
		}

		line, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		s.Values = append(s.Values, [2]string{strconv.FormatInt(entry.Time.UnixNano(), 10), string(line)})
	}

	req := pushRequest{Streams: make([]stream, 0, len(order))}
	for _, level := range order {
		req.Streams = append(req.Streams, *byLevel[level])
	}
	return req
}

func (p *Pusher) send(ctx context.Context) error {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)

	if err := json.NewEncoder(gz).Encode(p.buildRequest()); err != nil {
		return err
	}

	if err := gz.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Url, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.config.TenantKey != "" {
		req.Header.Set(p.config.TenantKey, p.config.TenantValue)
	}

	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received unexpected response code from Loki: %s, body: %s", resp.Status, string(body))
	}

	return nil
}
