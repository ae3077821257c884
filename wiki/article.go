// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package wiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/ibis/merge"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/store"
)

// ReadArticleView returns an article with its history and latest version
func (s *Service) ReadArticleView(ctx context.Context, id int) (models.ArticleView, error) {
	article, err := s.store.ReadArticle(ctx, id)
	if err != nil {
		return models.ArticleView{}, err
	}
	return s.articleView(ctx, article)
}

// ReadArticleViewByTitle looks up a local article, or a remote one by domain
func (s *Service) ReadArticleViewByTitle(ctx context.Context, title, domain string) (models.ArticleView, error) {
	article, err := s.store.ReadArticleByTitle(ctx, title, domain)
	if err != nil {
		return models.ArticleView{}, err
	}
	return s.articleView(ctx, article)
}

func (s *Service) articleView(ctx context.Context, article models.Article) (models.ArticleView, error) {
	edits, err := s.store.ListEdits(ctx, article.ID)
	if err != nil {
		return models.ArticleView{}, err
	}
	latest := models.DefaultEditVersion()
	if len(edits) > 0 {
		latest = edits[len(edits)-1].Edit.Hash
	}
	return models.ArticleView{Article: article, LatestVersion: latest, Edits: edits}, nil
}

// CreateArticle creates an empty local article and applies the initial text
// as its first edit
func (s *Service) CreateArticle(ctx context.Context, user models.LocalUserView, req models.CreateArticleRequest) (models.ArticleView, error) {
	if err := validateTitle(req.Title); err != nil {
		return models.ArticleView{}, err
	}
	if req.Text == "" {
		return models.ArticleView{}, ErrNoChanges
	}
	if req.Summary == "" {
		return models.ArticleView{}, ErrEmptySummary
	}

	instance, err := s.store.ReadLocalInstance(ctx)
	if err != nil {
		return models.ArticleView{}, err
	}
	article, err := s.store.CreateArticle(ctx, store.ArticleForm{
		Title:      req.Title,
		APID:       s.articleAPID(req.Title),
		InstanceID: instance.ID,
		Local:      true,
		Approved:   !s.cfg.Options.ArticleApproval,
	})
	if err != nil {
		return models.ArticleView{}, err
	}

	_, err = s.EditArticle(ctx, user, models.EditArticleRequest{
		ArticleID:         article.ID,
		NewText:           req.Text,
		Summary:           req.Summary,
		PreviousVersionID: models.DefaultEditVersion(),
	})
	if err != nil {
		return models.ArticleView{}, err
	}

	slog.Info("article created", "article_id", article.ID, "title", article.Title, "creator", user.Person.Username)
	return s.ReadArticleView(ctx, article.ID)
}

// EditArticle applies a new article text. When the edit is based on an
// outdated version it is stored as a conflict and merged with the current
// text. A non-nil APIConflict means the user has to merge by hand.
func (s *Service) EditArticle(ctx context.Context, user models.LocalUserView, req models.EditArticleRequest) (*models.APIConflict, error) {
	if req.ResolveConflictID != nil {
		if err := s.store.DeleteConflict(ctx, *req.ResolveConflictID, user.Person.ID); err != nil {
			return nil, err
		}
	}

	article, err := s.store.ReadArticle(ctx, req.ArticleID)
	if err != nil {
		return nil, err
	}

	// trailing newline keeps line diffs clean
	newText := req.NewText
	if !strings.HasSuffix(newText, "\n") {
		newText += "\n"
	}
	if req.NewText == article.Text || newText == article.Text {
		return nil, ErrNoChanges
	}
	if req.Summary == "" {
		return nil, ErrEmptySummary
	}
	if article.Protected && !user.LocalUser.Admin {
		return nil, fmt.Errorf("%w: article is protected", ErrForbidden)
	}
	if strings.Contains(newText, "]("+s.baseURL()) {
		return nil, ErrLocalLink
	}

	latest, err := s.store.LatestEditVersion(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	if req.PreviousVersionID == latest {
		_, err := s.SubmitUpdate(ctx, newText, req.Summary, article, user.Person.ID)
		if !errors.Is(err, store.ErrStaleVersion) {
			return nil, err
		}
		// another edit was saved since the article was read
		slog.Debug("edit raced another edit", "article_id", article.ID)
	}

	// the article changed since the edit was started; diff against the
	// version the user saw
	edits, err := s.store.ListEdits(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	ancestor, err := merge.GenerateVersion(editsOf(edits), req.PreviousVersionID)
	if err != nil {
		return nil, err
	}
	patch := merge.CreatePatch(ancestor, newText)

	conflict, err := s.store.CreateConflict(ctx, store.ConflictForm{
		Hash:              models.NewEditVersion(patch),
		Diff:              patch,
		Summary:           req.Summary,
		CreatorID:         user.Person.ID,
		ArticleID:         article.ID,
		PreviousVersionID: req.PreviousVersionID,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("edit conflict stored", "conflict_id", conflict.ID, "article_id", article.ID)

	return s.resolveConflict(ctx, conflict)
}

// SubmitUpdate appends an edit turning the article text into newText. It
// fails with store.ErrStaleVersion when article is no longer current.
func (s *Service) SubmitUpdate(ctx context.Context, newText, summary string, article models.Article, creatorID int) (models.Edit, error) {
	previous, err := s.store.LatestEditVersion(ctx, article.ID)
	if err != nil {
		return models.Edit{}, err
	}
	diff := merge.CreatePatch(article.Text, newText)
	version := models.NewEditVersion(diff)

	edit, err := s.store.AppendEdit(ctx, store.EditForm{
		CreatorID:         creatorID,
		Hash:              version,
		APID:              editAPID(article, version),
		Diff:              diff,
		Summary:           summary,
		ArticleID:         article.ID,
		PreviousVersionID: previous,
	}, article.Text, newText)
	if err != nil {
		return models.Edit{}, err
	}
	slog.Debug("edit submitted", "article_id", article.ID, "version", version.Hash())
	return edit, nil
}

// ForkArticle copies an article with its full history to a new local title
func (s *Service) ForkArticle(ctx context.Context, user models.LocalUserView, req models.ForkArticleRequest) (models.ArticleView, error) {
	if err := validateTitle(req.NewTitle); err != nil {
		return models.ArticleView{}, err
	}
	original, err := s.ReadArticleView(ctx, req.ArticleID)
	if err != nil {
		return models.ArticleView{}, err
	}
	instance, err := s.store.ReadLocalInstance(ctx)
	if err != nil {
		return models.ArticleView{}, err
	}

	article, err := s.store.CreateArticle(ctx, store.ArticleForm{
		Title:      req.NewTitle,
		Text:       original.Article.Text,
		APID:       s.articleAPID(req.NewTitle),
		InstanceID: instance.ID,
		Local:      true,
		Approved:   !s.cfg.Options.ArticleApproval,
	})
	if err != nil {
		return models.ArticleView{}, err
	}

	for _, e := range original.Edits {
		_, err := s.store.CreateEdit(ctx, store.EditForm{
			CreatorID:         e.Edit.CreatorID,
			Hash:              e.Edit.Hash,
			APID:              editAPID(article, e.Edit.Hash),
			Diff:              e.Edit.Diff,
			Summary:           e.Edit.Summary,
			ArticleID:         article.ID,
			PreviousVersionID: e.Edit.PreviousVersionID,
		})
		if err != nil {
			return models.ArticleView{}, fmt.Errorf("copy edit: %w", err)
		}
	}

	slog.Info("article forked", "from", original.Article.ID, "to", article.ID, "user", user.Person.Username)
	return s.ReadArticleView(ctx, article.ID)
}

// ProtectArticle locks or unlocks an article for non-admin edits
func (s *Service) ProtectArticle(ctx context.Context, user models.LocalUserView, req models.ProtectArticleRequest) (models.Article, error) {
	if err := requireAdmin(user); err != nil {
		return models.Article{}, err
	}
	return s.store.UpdateArticleProtected(ctx, req.ArticleID, req.Protected)
}

// ApproveArticle publishes a pending article, or deletes it when rejected
func (s *Service) ApproveArticle(ctx context.Context, user models.LocalUserView, req models.ApproveArticleRequest) error {
	if err := requireAdmin(user); err != nil {
		return err
	}
	if req.Approve {
		_, err := s.store.UpdateArticleApproved(ctx, req.ArticleID, true)
		return err
	}
	return s.store.DeleteArticle(ctx, req.ArticleID)
}

// SearchArticles rejects empty queries
func (s *Service) SearchArticles(ctx context.Context, q string) ([]models.Article, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	return s.store.SearchArticles(ctx, q)
}

func editsOf(views []models.EditView) []models.Edit {
	edits := make([]models.Edit, len(views))
	for i, v := range views {
		edits[i] = v.Edit
	}
	return edits
}
