package credentials

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/logger"
	"github.com/rankowl/rank-tracker/internal/metrics"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Active(ctx context.Context, provider string) ([]models.Credential, error)
	BumpUsage(ctx context.Context, id int) error
	MarkRateLimited(ctx context.Context, id int, at time.Time) error
	ResetUsage(ctx context.Context, provider string) error
}

type Stat struct {
	ID         int
	UsageCount int64
	LastUsedAt time.Time
}

// Pool rotates provider credentials round-robin, skipping ones marked rate
// limited within the configured window. The set is refreshed from the store
// on a TTL; a failed refresh keeps the last-known-good set.
type Pool struct {
	repo        Repository
	provider    string
	refreshTTL  time.Duration
	limitWindow time.Duration
	location    *time.Location

	mu          sync.Mutex
	credentials []models.Credential
	cursor      int
	refreshedAt time.Time
	lastReset   time.Time
}

func NewPool(repo Repository, provider string, refreshTTL, limitWindow time.Duration,
	location *time.Location) (*Pool, error) {

	if refreshTTL == 0 {
		refreshTTL = 5 * time.Minute
	}
	if limitWindow == 0 {
		limitWindow = time.Hour
	}

	p := &Pool{
		repo:        repo,
		provider:    provider,
		refreshTTL:  refreshTTL,
		limitWindow: limitWindow,
		location:    location,
		lastReset:   time.Now(),
	}

	credentials, err := repo.Active(context.Background(), provider)
	if err != nil {
		return nil, err
	}

	p.credentials = credentials
	p.refreshedAt = time.Now()
	log.Infof("credential pool for %v loaded with %d credentials", provider, len(credentials))
	return p, nil
}

// Next returns the next usable credential and records the dispatch. When
// every credential is limited the least recently limited one is returned as
// a best effort; only an empty pool is an error.
func (p *Pool) Next() (models.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maybeRefresh()
	p.maybeDailyReset()

	if len(p.credentials) == 0 {
		return models.Credential{}, clients.ErrNoCredentials
	}

	now := time.Now()
	picked := -1

	for i := 0; i < len(p.credentials); i++ {
		idx := (p.cursor + i) % len(p.credentials)
		if !p.credentials[idx].RateLimited(p.limitWindow, now) {
			picked = idx
			break
		}
	}

	if picked < 0 {
		log.Warnf("every %v credential is rate limited, serving least recently limited", p.provider)
		picked = p.leastRecentlyLimited()
	}

	p.cursor = (picked + 1) % len(p.credentials)
	p.credentials[picked].UsageCount++
	p.credentials[picked].LastUsedAt = now

	credential := p.credentials[picked]
	metrics.CredentialUsage.WithLabelValues(strconv.Itoa(credential.ID)).Set(float64(credential.UsageCount))

	go func() {
		if err := p.repo.BumpUsage(context.Background(), credential.ID); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to persist credential usage: %v", err)
		}
	}()

	return credential, nil
}

// MarkLimited flags the credential for the current window and advances the
// rotation past it. The credential stays in the pool.
func (p *Pool) MarkLimited(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for i := range p.credentials {
		if p.credentials[i].ID == id {
			p.credentials[i].RateLimitedAt = now
			if p.cursor == i {
				p.cursor = (i + 1) % len(p.credentials)
			}
			break
		}
	}

	go func() {
		if err := p.repo.MarkRateLimited(context.Background(), id, now); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to persist credential rate limit: %v", err)
		}
	}()
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.credentials)
}

func (p *Pool) Stats() []Stat {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]Stat, 0, len(p.credentials))
	for _, credential := range p.credentials {
		stats = append(stats, Stat{
			ID:         credential.ID,
			UsageCount: credential.UsageCount,
			LastUsedAt: credential.LastUsedAt,
		})
	}
	return stats
}

func (p *Pool) maybeRefresh() {
	if time.Since(p.refreshedAt) < p.refreshTTL {
		return
	}
	p.refreshedAt = time.Now()

	credentials, err := p.repo.Active(context.Background(), p.provider)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to refresh %v credentials, keeping %d known: %v", p.provider, len(p.credentials), err)
		return
	}

	p.credentials = credentials
	if p.cursor >= len(credentials) {
		p.cursor = 0
	}
}

// the provider zeroes quotas at its local midnight
func (p *Pool) maybeDailyReset() {
	now := time.Now().In(p.location)
	last := p.lastReset.In(p.location)

	if now.YearDay() == last.YearDay() && now.Year() == last.Year() {
		return
	}
	p.lastReset = time.Now()

	for i := range p.credentials {
		p.credentials[i].UsageCount = 0
	}

	go func() {
		if err := p.repo.ResetUsage(context.Background(), p.provider); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to reset credential usage: %v", err)
		}
	}()
}

func (p *Pool) leastRecentlyLimited() int {
	oldest := 0
	for i := range p.credentials {
		if p.credentials[i].RateLimitedAt.Before(p.credentials[oldest].RateLimitedAt) {
			oldest = i
		}
	}
	return oldest
}
