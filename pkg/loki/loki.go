package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-playground/validator/v10"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type Logger interface {
	Error(msg string, args ...any)
}

type Config struct {

	// URL of the loki push endpoint, e.g. https://loki.example.com/loki/api/v1/push
	URL string `validate:"required"`

	// BatchMaxSize is the maximum number of log lines sent in one request
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the maximum time to wait before flushing a batch
	BatchMaxWait time.Duration `validate:"gte=1"`

	// Labels are attached to every pushed stream
	Labels map[string]string

	// Username and Password enable basic auth when both are set
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
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}

type Entry struct {
	Level     string `json:"level"`
	Message   string `json:"msg"`
	Caller    string `json:"caller,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

type Pusher struct {
	config  *Config
	ctx     context.Context
	cancel  context.CancelFunc
	client  *http.Client
	quit    chan struct{}
	entries chan Entry
	wg      sync.WaitGroup
	batch   []streamValue
	logger  Logger
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values []streamValue     `json:"values"`
}

type streamValue []string

func New(ctx context.Context, cfg Config, logger Logger) (*Pusher, error) {

	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pusher{
		config:  &cfg,
		ctx:     ctx,
		cancel:  cancel,
		client:  &http.Client{},
		quit:    make(chan struct{}),
		entries: make(chan Entry),
		batch:   make([]streamValue, 0, cfg.BatchMaxSize),
		logger:  logger,
	}

	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Push queues a log entry for the next batch.
func (p *Pusher) Push(e Entry) error {
	p.entries <- e
	return nil
}

// Stop flushes any pending batch and stops the push loop.
func (p *Pusher) Stop() {
	close(p.quit)
	p.wg.Wait()
	p.cancel()
}

func (p *Pusher) run() {
	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	flush := func() {
		if err := p.send(); err != nil {
			p.logger.Error("failed to send logs", "error", err)
		}
		p.batch = p.batch[:0]
	}

	defer func() {
		if len(p.batch) > 0 {
			flush()
		}
		p.wg.Done()
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.quit:
			return
		case entry := <-p.entries:
			p.batch = append(p.batch, encodeEntry(entry))
			if len(p.batch) >= p.config.BatchMaxSize {
				flush()
			}
		case <-ticker.C:
			if len(p.batch) > 0 {
				flush()
			}
		}
	}
}

func encodeEntry(entry Entry) streamValue {
	entryJson, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	timestamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	return []string{timestamp, string(entryJson)}
}

func (p *Pusher) send() error {
	buf := bytes.NewBuffer([]byte{})
	gz := gzip.NewWriter(buf)

	if err := json.NewEncoder(gz).Encode(pushRequest{Streams: []stream{{
		Stream: p.config.Labels,
		Values: p.batch,
	}}}); err != nil {
		return err
	}

	if err := gz.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, p.config.URL, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("received unexpected response code from Loki: %s, body: %s", resp.Status, string(body))
	}

	return nil
}
