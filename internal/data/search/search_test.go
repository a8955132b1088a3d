package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/data/repos/testutil"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
)

func TestNewStrategyPicksFallbackOnSQLite(t *testing.T) {
	db := testutil.DB(t)
	s := NewStrategy(db, testutil.Logger(t))
	if s.Name() != "substring" || s.SupportsRanking() {
		t.Fatalf("expected substring strategy, got %s", s.Name())
	}
}

func TestSubstringFallbackSearch(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	s := NewSubstringFallback(db, testutil.Logger(t))

	project := testutil.SeedProject(t, ctx, db, uuid.New())
	other := testutil.SeedProject(t, ctx, db, uuid.New())
	chapter := uuid.New()
	base := time.Now().UTC().Add(-72 * time.Hour)

	older := testutil.SeedStory(t, ctx, db, project.ID, "Garden days", "We planted tomatoes", testutil.WithCreatedAt(base))
	newer := testutil.SeedStory(t, ctx, db, project.ID, "Harvest", "The GARDEN was full", testutil.WithCreatedAt(base.Add(48*time.Hour)), testutil.WithChapter(chapter))
	testutil.SeedStory(t, ctx, db, project.ID, "Draft", "garden notes", testutil.WithStatus(types.StoryStatusProcessing))
	testutil.SeedStory(t, ctx, db, other.ID, "Garden elsewhere", "garden")

	q := StoryQuery{ProjectID: project.ID, Text: "garden", SortBy: SortRelevance, Limit: 10}
	hits, err := s.Search(dbc, q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Story.ID != newer.ID || hits[1].Story.ID != older.ID {
		t.Fatalf("fallback must order by date desc")
	}
	for _, h := range hits {
		if h.Rank != FallbackRank {
			t.Fatalf("fallback rank: got %v", h.Rank)
		}
		if h.Headline == "" {
			t.Fatalf("missing headline")
		}
	}
	if n, err := s.Count(dbc, q); err != nil || n != 2 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	q.ChapterIDs = []uuid.UUID{chapter}
	if n, _ := s.Count(dbc, q); n != 1 {
		t.Fatalf("chapter filter: n=%d", n)
	}
	q.ChapterIDs = nil

	to := base.Add(time.Hour)
	q.DateTo = &to
	hits, err = s.Search(dbc, q)
	if err != nil || len(hits) != 1 || hits[0].Story.ID != older.ID {
		t.Fatalf("dateTo filter: err=%v hits=%d", err, len(hits))
	}
	q.DateTo = nil

	from := older.CreatedAt
	q.DateFrom = &from
	if n, _ := s.Count(dbc, q); n != 2 {
		t.Fatalf("dateFrom is inclusive: n=%d", n)
	}
	q.DateFrom = nil

	q.Limit, q.Offset = 1, 1
	hits, err = s.Search(dbc, q)
	if err != nil || len(hits) != 1 || hits[0].Story.ID != older.ID {
		t.Fatalf("offset page: err=%v", err)
	}
	if n, _ := s.Count(dbc, q); n != 2 {
		t.Fatalf("count ignores paging: n=%d", n)
	}
}

func TestSubstringFallbackLiteralWildcards(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	s := NewSubstringFallback(db, testutil.Logger(t))

	project := testutil.SeedProject(t, ctx, db, uuid.New())
	testutil.SeedStory(t, ctx, db, project.ID, "plain", "nothing special here")
	testutil.SeedStory(t, ctx, db, project.ID, "under", "snake_case words")

	n, err := s.Count(dbc, StoryQuery{ProjectID: project.ID, Text: "_"})
	if err != nil || n != 1 {
		t.Fatalf("underscore must match literally: n=%d err=%v", n, err)
	}
}

func TestSubstringFallbackReindexIdempotent(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	s := NewSubstringFallback(db, testutil.Logger(t))

	project := testutil.SeedProject(t, ctx, db, uuid.New())
	ready := testutil.SeedStory(t, ctx, db, project.ID, "Title", "Body")
	pending := testutil.SeedStory(t, ctx, db, project.ID, "Other", "Body", testutil.WithStatus(types.StoryStatusProcessing))

	// Stale derived column.
	if err := db.Table("story").Where("id = ?", ready.ID).Update("search_content", "stale").Error; err != nil {
		t.Fatalf("stale: %v", err)
	}

	var contents []string
	for i := 0; i < 2; i++ {
		n, err := s.ReindexProject(dbc, project.ID)
		if err != nil || n != 1 {
			t.Fatalf("ReindexProject #%d: n=%d err=%v", i, n, err)
		}
		var row types.Story
		if err := db.Where("id = ?", ready.ID).First(&row).Error; err != nil {
			t.Fatalf("load: %v", err)
		}
		contents = append(contents, row.SearchContent)
	}
	if contents[0] != "title body" || contents[0] != contents[1] {
		t.Fatalf("reindex not idempotent: %v", contents)
	}

	if n, err := s.ReindexStory(dbc, pending.ID); err != nil || n != 0 {
		t.Fatalf("ReindexStory(processing): n=%d err=%v", n, err)
	}
	if n, err := s.ReindexStory(dbc, uuid.New()); err != nil || n != 0 {
		t.Fatalf("ReindexStory(unknown): n=%d err=%v", n, err)
	}
	if n, err := s.ReindexProject(dbc, uuid.New()); err != nil || n != 0 {
		t.Fatalf("ReindexProject(unknown): n=%d err=%v", n, err)
	}
}

func TestPrefixHeadline(t *testing.T) {
	long := strings.Repeat("word ", 100)
	h := prefixHeadline("t", long)
	if !strings.HasSuffix(h, "...") || len([]rune(h)) != prefixHeadlineRunes+3 {
		t.Fatalf("truncated headline: len=%d", len([]rune(h)))
	}
	if got := prefixHeadline("Only title", ""); got != "Only title" {
		t.Fatalf("title fallback: got %q", got)
	}
	if got := prefixHeadline("", "<script>x</script>hi"); strings.Contains(got, "<script>") {
		t.Fatalf("markup not stripped: %q", got)
	}
}

func TestSanitizeHighlightKeepsBold(t *testing.T) {
	got := sanitizeHighlight(`my <b>garden</b> <img src=x onerror=alert(1)>`)
	if !strings.Contains(got, "<b>garden</b>") || strings.Contains(got, "<img") {
		t.Fatalf("sanitizeHighlight: got %q", got)
	}
}

func TestNativeRankedSearch(t *testing.T) {
	pg := testutil.PostgresDB(t)
	tx := testutil.Tx(t, pg)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	s := NewNativeRanked(pg, testutil.Logger(t))

	project := testutil.SeedProject(t, ctx, tx, uuid.New())
	inBody := testutil.SeedStory(t, ctx, tx, project.ID, "Sunday lunch", "we talked about childhood friends")
	inTitle := testutil.SeedStory(t, ctx, tx, project.ID, "My childhood memories", "a garden with my siblings")
	testutil.SeedStory(t, ctx, tx, project.ID, "childhood draft", "childhood", testutil.WithStatus(types.StoryStatusProcessing))

	q := StoryQuery{ProjectID: project.ID, Text: "childhood", SortBy: SortRelevance, Limit: 10}
	hits, err := s.Search(dbc, q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 ready hits, got %d", len(hits))
	}
	if hits[0].Story.ID != inTitle.ID || hits[1].Story.ID != inBody.ID {
		t.Fatalf("title match should outrank body match")
	}
	if hits[0].Rank <= hits[1].Rank {
		t.Fatalf("ranks not descending: %v %v", hits[0].Rank, hits[1].Rank)
	}
	if !strings.Contains(hits[1].Headline, "<b>") {
		t.Fatalf("headline lacks highlight: %q", hits[1].Headline)
	}
	if n, err := s.Count(dbc, q); err != nil || n != 2 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	for i := 0; i < 2; i++ {
		if n, err := s.ReindexProject(dbc, project.ID); err != nil || n != 2 {
			t.Fatalf("ReindexProject #%d: n=%d err=%v", i, n, err)
		}
	}
}
