package aggregates_test

import (
	"context"
	"strings"

	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
)

func dbcOf() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

func contains(s, sub string) bool { return strings.Contains(s, sub) }
