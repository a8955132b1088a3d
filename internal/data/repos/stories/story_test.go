package stories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/data/repos/testutil"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
)

func TestStoryRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewStoryRepo(db, testutil.Logger(t))

	project := testutil.SeedProject(t, ctx, db, uuid.New())

	created, err := repo.Create(dbc, []*types.Story{{
		ProjectID:  project.ID,
		Title:      "Summer Trip",
		Transcript: "We drove to the Lake",
	}})
	if err != nil || len(created) != 1 {
		t.Fatalf("Create: err=%v len=%d", err, len(created))
	}
	s := created[0]
	if s.Status != types.StoryStatusProcessing {
		t.Fatalf("default status: got %q", s.Status)
	}

	got, err := repo.GetByID(dbc, s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v row=%v", err, got)
	}
	if got.SearchContent != "summer trip we drove to the lake" {
		t.Fatalf("search_content on create: got %q", got.SearchContent)
	}

	if err := repo.UpdateFields(dbc, s.ID, map[string]interface{}{
		"transcript": "We flew to the Coast",
		"status":     types.StoryStatusReady,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(dbc, s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID after update: err=%v", err)
	}
	if got.SearchContent != types.BuildSearchContent(got.Title, got.Transcript) {
		t.Fatalf("search_content after update: got %q", got.SearchContent)
	}

	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID(unknown): err=%v row=%v", err, missing)
	}
}

func TestStoryRepoEachReadyTranscript(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewStoryRepo(db, testutil.Logger(t))

	project := testutil.SeedProject(t, ctx, db, uuid.New())
	testutil.SeedStory(t, ctx, db, project.ID, "a", "Grandma baked bread")
	testutil.SeedStory(t, ctx, db, project.ID, "b", "grandpa built boats", testutil.WithStatus(types.StoryStatusProcessing))
	testutil.SeedStory(t, ctx, db, project.ID, "c", "100% of the garden")

	collect := func(needle string) []string {
		t.Helper()
		var out []string
		err := repo.EachReadyTranscript(dbc, project.ID, needle, func(tr string) error {
			out = append(out, tr)
			return nil
		})
		if err != nil {
			t.Fatalf("EachReadyTranscript(%q): %v", needle, err)
		}
		return out
	}

	if rows := collect("gra"); len(rows) != 1 || rows[0] != "Grandma baked bread" {
		t.Fatalf("expected only the ready match, got %v", rows)
	}
	// Wildcards in the needle are literal.
	if rows := collect("%"); len(rows) != 1 || rows[0] != "100% of the garden" {
		t.Fatalf("expected literal %% match, got %v", rows)
	}
	if rows := collect(""); len(rows) != 2 {
		t.Fatalf("expected both ready transcripts, got %v", rows)
	}

	stop := errors.New("stop")
	calls := 0
	err := repo.EachReadyTranscript(dbc, project.ID, "", func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("callback error not propagated: err=%v calls=%d", err, calls)
	}
}

func TestProjectMemberRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewProjectMemberRepo(db, testutil.Logger(t))

	owner := uuid.New()
	teller := uuid.New()
	stranger := uuid.New()
	project := testutil.SeedProject(t, ctx, db, owner)

	if err := repo.Upsert(dbc, &types.ProjectMember{ProjectID: project.ID, UserID: teller, Role: types.RoleStoryteller}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	cases := []struct {
		name   string
		user   uuid.UUID
		role   string
		access bool
	}{
		{"owner", owner, types.RoleFacilitator, true},
		{"member", teller, types.RoleStoryteller, true},
		{"stranger", stranger, "", false},
	}
	for _, tc := range cases {
		role, err := repo.GetUserRole(dbc, project.ID, tc.user)
		if err != nil || role != tc.role {
			t.Fatalf("%s: GetUserRole err=%v role=%q want %q", tc.name, err, role, tc.role)
		}
		ok, err := repo.HasUserAccess(dbc, project.ID, tc.user)
		if err != nil || ok != tc.access {
			t.Fatalf("%s: HasUserAccess err=%v got %v", tc.name, err, ok)
		}
	}

	// Upsert on an existing membership changes the role.
	if err := repo.Upsert(dbc, &types.ProjectMember{ProjectID: project.ID, UserID: teller, Role: types.RoleFacilitator}); err != nil {
		t.Fatalf("Upsert(promote): %v", err)
	}
	if role, _ := repo.GetUserRole(dbc, project.ID, teller); role != types.RoleFacilitator {
		t.Fatalf("promoted role: got %q", role)
	}
}
