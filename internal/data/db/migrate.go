package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/domain"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Projects + membership directory
		&domain.Project{},
		&domain.ProjectMember{},

		// Stories + search
		&domain.Story{},
		&domain.SearchAnalytics{},

		// Resource ledger
		&domain.ResourceWallet{},
		&domain.SeatTransaction{},
	)
}

// Dialect returns the gorm dialector name of db.
func Dialect(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	return db.Dialector.Name()
}

// StorySearchVectorExpr is the weighted tsvector for a story row; ref is the
// row reference ("NEW" inside the trigger, "story" in updates).
func StorySearchVectorExpr(ref string) string {
	return fmt.Sprintf(
		"setweight(to_tsvector('english', coalesce(%[1]s.title, '')), 'A') || "+
			"setweight(to_tsvector('english', coalesce(%[1]s.transcript, '')), 'B')",
		ref,
	)
}

// EnsureSearchIndexes installs the Postgres full-text column, its GIN index and
// the trigger keeping it current on insert and on title/transcript edits.
// It is a no-op on other dialects.
func EnsureSearchIndexes(db *gorm.DB) error {
	if Dialect(db) != DialectPostgres {
		return nil
	}
	if err := db.Exec(`ALTER TABLE story ADD COLUMN IF NOT EXISTS search_vector tsvector;`).Error; err != nil {
		return fmt.Errorf("add story.search_vector: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_story_search_vector ON story USING GIN (search_vector);`).Error; err != nil {
		return fmt.Errorf("create idx_story_search_vector: %w", err)
	}
	fn := fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION story_search_vector_refresh() RETURNS trigger AS $$
		BEGIN
			NEW.search_vector := %s;
			RETURN NEW;
		END
		$$ LANGUAGE plpgsql;
	`, StorySearchVectorExpr("NEW"))
	if err := db.Exec(fn).Error; err != nil {
		return fmt.Errorf("create story_search_vector_refresh: %w", err)
	}
	if err := db.Exec(`DROP TRIGGER IF EXISTS trg_story_search_vector ON story;`).Error; err != nil {
		return fmt.Errorf("drop trg_story_search_vector: %w", err)
	}
	if err := db.Exec(`
		CREATE TRIGGER trg_story_search_vector
		BEFORE INSERT OR UPDATE OF title, transcript ON story
		FOR EACH ROW EXECUTE FUNCTION story_search_vector_refresh();
	`).Error; err != nil {
		return fmt.Errorf("create trg_story_search_vector: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_search_analytics_query ON search_analytics(project_id, query);`).Error; err != nil {
		return fmt.Errorf("create idx_search_analytics_query: %w", err)
	}
	return nil
}
