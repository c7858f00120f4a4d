package repositories

import (
	"context"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"time"
)

type keywordSource interface {
	Active(ctx context.Context, keywordType models.KeywordType) ([]models.Keyword, error)
	GetByID(ctx context.Context, id int) (*models.Keyword, error)
}

// CachedKeywords caches the active keyword sets between orchestrator ticks;
// keyword CRUD happens rarely compared to collection cycles.
type CachedKeywords struct {
	repo  keywordSource
	cache *gocache.Cache
}

func NewCachedKeywords(repo keywordSource) *CachedKeywords {
	return &CachedKeywords{repo: repo, cache: gocache.New(5*time.Minute, 10*time.Minute)}
}

func (c CachedKeywords) Active(ctx context.Context, keywordType models.KeywordType) ([]models.Keyword, error) {
	if value, found := c.cache.Get(string(keywordType)); found {
		return value.([]models.Keyword), nil
	}

	keywords, err := c.repo.Active(ctx, keywordType)
	if err != nil {
		return nil, err
	}

	if err = c.cache.Add(string(keywordType), keywords, gocache.DefaultExpiration); err != nil {
		return keywords, err
	}
	return keywords, nil
}

func (c CachedKeywords) GetByID(ctx context.Context, id int) (*models.Keyword, error) {
	return c.repo.GetByID(ctx, id)
}
