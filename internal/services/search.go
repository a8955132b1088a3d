package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/storykeep-backend/internal/data/repos"
	"github.com/yungbote/storykeep-backend/internal/data/repos/analytics"
	"github.com/yungbote/storykeep-backend/internal/data/search"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	domainagg "github.com/yungbote/storykeep-backend/internal/domain/aggregates"
	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// ErrSearchFailed wraps store failures during a search. The cause is kept for
// logs; callers only see that the search failed.
var ErrSearchFailed = errors.New("search failed")

const (
	maxQueryRunes          = 100
	minSuggestionRunes     = 2
	defaultSuggestionLimit = 5
	maxSuggestionLimit     = 50
	defaultTopQueries      = 10
	maxTopQueries          = 100
)

var (
	queryStrip      = regexp.MustCompile(`[^\w\s-]`)
	querySpace      = regexp.MustCompile(`\s+`)
	alphabeticToken = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// SanitizeQuery keeps word characters, whitespace and hyphens, collapses
// whitespace and caps the result at 100 characters.
func SanitizeQuery(raw string) string {
	q := queryStrip.ReplaceAllString(raw, "")
	q = strings.TrimSpace(querySpace.ReplaceAllString(q, " "))
	if r := []rune(q); len(r) > maxQueryRunes {
		q = strings.TrimSpace(string(r[:maxQueryRunes]))
	}
	return q
}

type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 20
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = c.MaxLimit
	}
	return c
}

type SearchOptions struct {
	Page           int
	Limit          int
	ChapterIDs     []uuid.UUID
	FacilitatorIDs []uuid.UUID
	DateFrom       *time.Time
	DateTo         *time.Time
	// relevance|date
	SortBy string
}

type SearchResult struct {
	Story    *types.Story `json:"story"`
	Rank     float64      `json:"rank"`
	Headline string       `json:"headline,omitempty"`
}

type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	HasMore    bool           `json:"hasMore"`
	SearchTime int64          `json:"searchTime"`
	// Set by callers that tracked the search, for click attribution.
	AnalyticsID *uuid.UUID `json:"analyticsId,omitempty"`
}

// SearchEvent is one search call as recorded for analytics.
type SearchEvent struct {
	Query        string
	ProjectID    uuid.UUID
	UserID       uuid.UUID
	ResultCount  int
	SearchTimeMs int64
}

type AnalyticsOptions struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

type SearchAnalyticsReport struct {
	TopQueries         []analytics.QueryCount `json:"topQueries"`
	TotalSearches      int64                  `json:"totalSearches"`
	AverageResultCount float64                `json:"averageResultCount"`
	AverageSearchTime  float64                `json:"averageSearchTime"`
}

type SearchService interface {
	// Backend names the strategy chosen at start-up.
	Backend() string

	SearchStories(ctx context.Context, projectID uuid.UUID, query string, opts SearchOptions) (*SearchResponse, error)
	GetSearchSuggestions(ctx context.Context, projectID uuid.UUID, partial string, limit int) ([]string, error)

	// TrackSearchAnalytics never fails the caller. It returns the stored
	// event id, or uuid.Nil when the write was dropped.
	TrackSearchAnalytics(ctx context.Context, ev SearchEvent) uuid.UUID
	RecordClick(ctx context.Context, projectID, analyticsID, storyID uuid.UUID) error
	GetSearchAnalytics(ctx context.Context, projectID uuid.UUID, opts AnalyticsOptions) (*SearchAnalyticsReport, error)
	PurgeAnalytics(ctx context.Context, before time.Time) (int64, error)

	ReindexStory(ctx context.Context, storyID uuid.UUID) (int64, error)
	ReindexProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type searchService struct {
	log       *logger.Logger
	cfg       SearchConfig
	strategy  search.QueryStrategy
	stories   repos.StoryRepo
	analytics repos.SearchAnalyticsRepo
	cache     SuggestionCache
	metrics   *observability.Metrics
}

func NewSearchService(
	log *logger.Logger,
	cfg SearchConfig,
	strategy search.QueryStrategy,
	stories repos.StoryRepo,
	analyticsRepo repos.SearchAnalyticsRepo,
	cache SuggestionCache,
	metrics *observability.Metrics,
) SearchService {
	if cache == nil {
		cache = NewNoopSuggestionCache()
	}
	return &searchService{
		log:       log.With("service", "SearchService"),
		cfg:       cfg.withDefaults(),
		strategy:  strategy,
		stories:   stories,
		analytics: analyticsRepo,
		cache:     cache,
		metrics:   metrics,
	}
}

func (s *searchService) Backend() string { return s.strategy.Name() }

func (s *searchService) SearchStories(ctx context.Context, projectID uuid.UUID, query string, opts SearchOptions) (*SearchResponse, error) {
	const op = "Search.SearchStories"
	start := time.Now()
	ctx, span := observability.Tracer("storykeep/search").Start(ctx, op)
	defer span.End()

	if projectID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing project_id", nil)
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	sortBy := strings.ToLower(strings.TrimSpace(opts.SortBy))
	if sortBy == "" {
		sortBy = search.SortRelevance
	}
	if sortBy != search.SortRelevance && sortBy != search.SortDate {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid sortBy %q", opts.SortBy), nil)
	}
	if opts.DateFrom != nil && opts.DateTo != nil && opts.DateFrom.After(*opts.DateTo) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "dateFrom is after dateTo", nil)
	}

	out := &SearchResponse{Results: []SearchResult{}, Page: page, Limit: limit}
	text := SanitizeQuery(query)
	span.SetAttributes(
		attribute.String("search.backend", s.strategy.Name()),
		attribute.Int("search.page", page),
		attribute.Int("search.limit", limit),
	)
	if text == "" {
		out.SearchTime = time.Since(start).Milliseconds()
		s.metrics.ObserveSearch(s.strategy.Name(), "empty", 0, time.Since(start))
		return out, nil
	}

	q := search.StoryQuery{
		ProjectID:      projectID,
		Text:           text,
		ChapterIDs:     opts.ChapterIDs,
		FacilitatorIDs: opts.FacilitatorIDs,
		DateFrom:       opts.DateFrom,
		DateTo:         opts.DateTo,
		SortBy:         sortBy,
		Limit:          limit,
		Offset:         (page - 1) * limit,
	}

	var hits []search.Hit
	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hits, err = s.strategy.Search(dbctx.Context{Ctx: gctx}, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.strategy.Count(dbctx.Context{Ctx: gctx}, q)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("story search failed", "project_id", projectID, "backend", s.strategy.Name(), "error", err)
		s.metrics.ObserveSearch(s.strategy.Name(), "error", 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	for _, h := range hits {
		out.Results = append(out.Results, SearchResult{Story: h.Story, Rank: h.Rank, Headline: h.Headline})
	}
	out.Total = total
	out.HasMore = int64(q.Offset+len(out.Results)) < total
	out.SearchTime = time.Since(start).Milliseconds()

	s.metrics.ObserveSearch(s.strategy.Name(), "ok", total, time.Since(start))
	span.SetAttributes(attribute.Int64("search.total", total))
	return out, nil
}

func (s *searchService) GetSearchSuggestions(ctx context.Context, projectID uuid.UUID, partial string, limit int) ([]string, error) {
	const op = "Search.GetSearchSuggestions"
	if projectID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing project_id", nil)
	}
	prefix := strings.ToLower(SanitizeQuery(partial))
	if len([]rune(prefix)) < minSuggestionRunes {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	if limit > maxSuggestionLimit {
		limit = maxSuggestionLimit
	}

	if cached, ok := s.cache.Get(ctx, projectID, prefix, limit); ok {
		return cached, nil
	}

	tally := wordTally{}
	err := s.stories.EachReadyTranscript(dbctx.Context{Ctx: ctx}, projectID, prefix, func(transcript string) error {
		tally.add(transcript, prefix)
		return nil
	})
	if err != nil {
		s.log.Error("suggestion scan failed", "project_id", projectID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	out := tally.top(limit)
	s.cache.Set(ctx, projectID, prefix, limit, out)
	return out, nil
}

// wordTally counts whitespace-separated words that start with a prefix, are
// longer than two letters and purely alphabetic once surrounding punctuation
// is trimmed.
type wordTally map[string]int

func (w wordTally) add(transcript, prefix string) {
	for _, raw := range strings.Fields(transcript) {
		word := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) }))
		if len(word) <= 2 || !strings.HasPrefix(word, prefix) || !alphabeticToken.MatchString(word) {
			continue
		}
		w[word]++
	}
}

// top returns the limit most frequent words; ties break alphabetically.
func (w wordTally) top(limit int) []string {
	words := make([]string, 0, len(w))
	for word := range w {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if w[words[i]] != w[words[j]] {
			return w[words[i]] > w[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

func (s *searchService) TrackSearchAnalytics(ctx context.Context, ev SearchEvent) uuid.UUID {
	if ev.ProjectID == uuid.Nil {
		return uuid.Nil
	}
	row := &types.SearchAnalytics{
		ID:           uuid.New(),
		Query:        SanitizeQuery(ev.Query),
		ProjectID:    ev.ProjectID,
		UserID:       ev.UserID,
		ResultCount:  ev.ResultCount,
		SearchTimeMs: ev.SearchTimeMs,
	}
	// Analytics must survive the request being cancelled right after the
	// response is written.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.analytics.Create(dbctx.Context{Ctx: wctx}, row); err != nil {
		s.log.Warn("search analytics dropped", "project_id", ev.ProjectID, "error", err)
		s.metrics.IncAnalyticsDropped()
		return uuid.Nil
	}
	return row.ID
}

func (s *searchService) RecordClick(ctx context.Context, projectID, analyticsID, storyID uuid.UUID) error {
	const op = "Search.RecordClick"
	if projectID == uuid.Nil || analyticsID == uuid.Nil || storyID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "projectId, analyticsId and storyId are required", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	story, err := s.stories.GetByID(dbc, storyID)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if story == nil || story.ProjectID != projectID {
		return domainagg.NewError(domainagg.CodeNotFound, op, "story not found", nil)
	}
	ok, err := s.analytics.AppendClick(dbc, projectID, analyticsID, storyID)
	if err != nil {
		s.log.Warn("record click failed", "analytics_id", analyticsID, "error", err)
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if !ok {
		return domainagg.NewError(domainagg.CodeNotFound, op, "search event not found", nil)
	}
	return nil
}

func (s *searchService) GetSearchAnalytics(ctx context.Context, projectID uuid.UUID, opts AnalyticsOptions) (*SearchAnalyticsReport, error) {
	const op = "Search.GetSearchAnalytics"
	if projectID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing project_id", nil)
	}
	if opts.DateFrom != nil && opts.DateTo != nil && opts.DateFrom.After(*opts.DateTo) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "dateFrom is after dateTo", nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultTopQueries
	}
	if limit > maxTopQueries {
		limit = maxTopQueries
	}
	w := analytics.AnalyticsWindow{ProjectID: projectID, From: opts.DateFrom, To: opts.DateTo}

	var (
		top     []analytics.QueryCount
		summary analytics.AnalyticsSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		top, err = s.analytics.TopQueries(dbctx.Context{Ctx: gctx}, w, limit)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = s.analytics.Summary(dbctx.Context{Ctx: gctx}, w)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("search analytics query failed", "project_id", projectID, "error", err)
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &SearchAnalyticsReport{
		TopQueries:         top,
		TotalSearches:      summary.TotalSearches,
		AverageResultCount: summary.AverageResultCount,
		AverageSearchTime:  summary.AverageSearchTime,
	}, nil
}

func (s *searchService) PurgeAnalytics(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.analytics.PurgeBefore(dbctx.Context{Ctx: ctx}, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("search analytics purged", "rows", n, "before", before)
	}
	return n, nil
}

func (s *searchService) ReindexStory(ctx context.Context, storyID uuid.UUID) (int64, error) {
	ctx, span := observability.Tracer("storykeep/search").Start(ctx, "Search.ReindexStory")
	defer span.End()
	dbc := dbctx.Context{Ctx: ctx}
	story, err := s.stories.GetByID(dbc, storyID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	if story == nil {
		return 0, nil
	}
	n, err := s.strategy.ReindexStory(dbc, storyID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	// A story leaving ready reindexes zero rows but still changes suggestions.
	s.cache.InvalidateProject(ctx, story.ProjectID)
	s.metrics.ObserveReindex("story", n)
	return n, nil
}

func (s *searchService) ReindexProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	ctx, span := observability.Tracer("storykeep/search").Start(ctx, "Search.ReindexProject")
	defer span.End()
	n, err := s.strategy.ReindexProject(dbctx.Context{Ctx: ctx}, projectID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	s.cache.InvalidateProject(ctx, projectID)
	s.metrics.ObserveReindex("project", n)
	s.log.Info("project reindexed", "project_id", projectID, "rows", n, "backend", s.strategy.Name())
	return n, nil
}
