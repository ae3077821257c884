// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package wiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/ibis/merge"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/store"
)

// ListConflicts retries every stored conflict of the user and returns the
// ones that still need a manual merge
func (s *Service) ListConflicts(ctx context.Context, user models.LocalUserView) ([]models.APIConflict, error) {
	conflicts, err := s.store.ListConflicts(ctx, user.Person.ID)
	if err != nil {
		return nil, err
	}

	open := []models.APIConflict{}
	for _, c := range conflicts {
		api, err := s.resolveConflict(ctx, c)
		if err != nil {
			return nil, err
		}
		if api != nil {
			open = append(open, *api)
		}
	}
	return open, nil
}

// DeleteConflict discards a conflict of the user
func (s *Service) DeleteConflict(ctx context.Context, user models.LocalUserView, id int) error {
	return s.store.DeleteConflict(ctx, id, user.Person.ID)
}

// resolveConflict merges the conflicting edit with the current article
// text. A clean merge is submitted and the conflict removed.
func (s *Service) resolveConflict(ctx context.Context, c models.Conflict) (*models.APIConflict, error) {
	for {
		api, err := s.mergeConflict(ctx, c)
		if !errors.Is(err, store.ErrStaleVersion) {
			return api, err
		}
		// the article moved on while merging; merge again with the new text
		slog.Debug("conflict merge raced another edit", "conflict_id", c.ID)
	}
}

func (s *Service) mergeConflict(ctx context.Context, c models.Conflict) (*models.APIConflict, error) {
	article, err := s.store.ReadArticle(ctx, c.ArticleID)
	if err != nil {
		return nil, err
	}
	edits, err := s.store.ListEdits(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	ancestor, err := merge.GenerateVersion(editsOf(edits), c.PreviousVersionID)
	if err != nil {
		return nil, err
	}
	ours, err := merge.ApplyPatch(ancestor, c.Diff)
	if err != nil {
		return nil, fmt.Errorf("apply conflict %d: %w", c.ID, err)
	}

	merged, clean := merge.Merge(ancestor, ours, article.Text)
	if clean {
		if merged != article.Text {
			if _, err := s.SubmitUpdate(ctx, merged, c.Summary, article, c.CreatorID); err != nil {
				return nil, err
			}
		}
		if err := s.store.DeleteConflict(ctx, c.ID, c.CreatorID); err != nil {
			return nil, err
		}
		slog.Info("edit conflict merged", "conflict_id", c.ID, "article_id", article.ID)
		return nil, nil
	}

	latest, err := s.store.LatestEditVersion(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	return &models.APIConflict{
		ID:                c.ID,
		Hash:              c.Hash,
		ThreeWayMerge:     merged,
		Summary:           c.Summary,
		Article:           article,
		PreviousVersionID: latest,
		Published:         c.Published,
	}, nil
}
