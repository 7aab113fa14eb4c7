package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"importdesk/internal/backend"
	"importdesk/internal/cache"
	"importdesk/internal/core"
	applog "importdesk/internal/log"
)

const categoriesKey = "categories"

var errNoCategories = errors.New("backend listed no categories")

// CategorySource resolves the selectable category set. The API list is cached
// for ttl; when it cannot be fetched the fallback list is used. The result
// always contains core.OtherCategory.
type CategorySource struct {
	lister   backend.CategoryLister
	loader   *cache.Loader[[]string]
	entries  *cache.LRUCache[[]string]
	fallback []string
	logger   *applog.Logger
}

func NewCategorySource(lister backend.CategoryLister, ttl time.Duration, fallback []string, logger *applog.Logger) *CategorySource {
	if logger == nil {
		logger = applog.Discard()
	}
	entries := cache.NewLRUCache[[]string](1, ttl)
	return &CategorySource{
		lister:   lister,
		loader:   cache.NewLoader[[]string](entries),
		entries:  entries,
		fallback: withOther(fallback),
		logger:   logger.WithComponent(applog.ComponentSession),
	}
}

// Resolve never fails; errors fall back to the configured list.
func (c *CategorySource) Resolve(ctx context.Context) []string {
	cats, err := c.loader.Get(ctx, categoriesKey, c.load)
	if err != nil {
		c.logger.WarnContext(ctx, "using fallback categories", applog.FieldError, err)
		return append([]string(nil), c.fallback...)
	}
	return append([]string(nil), cats...)
}

// Invalidate forces the next Resolve to ask the API again.
func (c *CategorySource) Invalidate() {
	c.loader.Forget(categoriesKey)
}

// Cache exposes the backing cache for periodic cleanup.
func (c *CategorySource) Cache() cache.Cleaner {
	return c.entries
}

func (c *CategorySource) load(ctx context.Context) ([]string, error) {
	if c.lister == nil {
		return nil, errNoCategories
	}
	cats, err := c.lister.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, errNoCategories
	}
	return withOther(cats), nil
}

// withOther trims, drops blanks and duplicates, and appends Other if missing.
func withOther(in []string) []string {
	seen := make(map[string]bool, len(in)+1)
	out := make([]string, 0, len(in)+1)
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if !seen[core.OtherCategory] {
		out = append(out, core.OtherCategory)
	}
	return out
}
