package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/storykeep-backend/internal/app"
	"github.com/yungbote/storykeep-backend/internal/services"
)

func newReindexCmd() *cobra.Command {
	var projectID, storyID string
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild search vectors for a project or a single story",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (projectID == "") == (storyID == "") {
				return fmt.Errorf("exactly one of --project or --story is required")
			}
			return withApp(func(a *app.App) error {
				var (
					n   int64
					err error
				)
				if projectID != "" {
					id, perr := uuid.Parse(projectID)
					if perr != nil {
						return fmt.Errorf("invalid --project: %w", perr)
					}
					n, err = a.Services.Search.ReindexProject(cmd.Context(), id)
				} else {
					id, perr := uuid.Parse(storyID)
					if perr != nil {
						return fmt.Errorf("invalid --story: %w", perr)
					}
					n, err = a.Services.Search.ReindexStory(cmd.Context(), id)
				}
				if err != nil {
					return err
				}
				emit(map[string]int64{"reindexedCount": n}, func() {
					fmt.Printf("reindexed %d stories\n", n)
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVar(&storyID, "story", "", "Story id")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		projectID string
		page      int
		limit     int
		sortBy    string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a story search without recording analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := uuid.Parse(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			return withApp(func(a *app.App) error {
				res, err := a.Services.Search.SearchStories(cmd.Context(), pid, args[0], services.SearchOptions{
					Page:   page,
					Limit:  limit,
					SortBy: sortBy,
				})
				if err != nil {
					return err
				}
				emit(res, func() {
					fmt.Printf("%d matches (page %d, %dms)\n", res.Total, res.Page, res.SearchTime)
					for _, r := range res.Results {
						fmt.Printf("  %.3f  %s  %s  %s\n", r.Rank, r.Story.ID, r.Story.CreatedAt.Format(time.DateOnly), r.Story.Title)
					}
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (server default when 0)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "relevance|date")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Search analytics maintenance",
	}
	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete search analytics older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be > 0")
			}
			return withApp(func(a *app.App) error {
				cutoff := time.Now().UTC().Add(-olderThan)
				n, err := a.Services.Search.PurgeAnalytics(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				emit(map[string]any{"deleted": n, "before": cutoff}, func() {
					fmt.Printf("deleted %d analytics rows before %s\n", n, cutoff.Format(time.RFC3339))
				})
				return nil
			})
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 180*24*time.Hour, "Retention window")
	cmd.AddCommand(purge)
	return cmd
}
