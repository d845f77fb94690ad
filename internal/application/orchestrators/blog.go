package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carimport/internal/adapters/storage"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/blog"
)

// BlogStore defines the store interface needed by blog orchestrators.
type BlogStore interface {
	GetByID(ctx context.Context, id string) (blog.Post, error)
	GetBySlug(ctx context.Context, slug string) (blog.Post, error)
	Save(ctx context.Context, p blog.Post) error
	Delete(ctx context.Context, id string) error
}

// BlogDeps holds dependencies for blog orchestrators.
type BlogDeps struct {
	BlogStore  BlogStore
	AuditStore AuditRecorder
	GenerateID func() string
	Now        func() time.Time
}

// SavePostInput carries a new or edited blog post. Empty ID creates a post.
type SavePostInput struct {
	ID           string
	Slug         string
	Title        string
	Summary      string
	BodyMarkdown string
	CoverImage   string
	Actor        audit.Actor
}

// ExecuteSavePost creates or updates a blog post.
// PRE: Actor is staff or admin
// POST: Post saved; slug derived from the title when empty
// INVARIANT: slugs are unique across posts
func ExecuteSavePost(ctx context.Context, input SavePostInput, deps BlogDeps) (blog.Post, error) {
	now := nowFrom(deps.Now)
	var p blog.Post
	action := audit.ActionCreate
	if input.ID != "" {
		existing, err := deps.BlogStore.GetByID(ctx, input.ID)
		if err != nil {
			return blog.Post{}, fmt.Errorf("load post: %w", err)
		}
		p = existing
		action = audit.ActionUpdate
	} else {
		p = blog.Post{ID: newID(deps.GenerateID), AuthorID: input.Actor.ID, CreatedAt: now}
	}
	p.Slug = input.Slug
	p.Title = input.Title
	p.Summary = input.Summary
	p.BodyMarkdown = input.BodyMarkdown
	p.CoverImage = input.CoverImage
	p.UpdatedAt = now
	p.Normalize()
	if err := p.Validate(); err != nil {
		return blog.Post{}, err
	}

	other, err := deps.BlogStore.GetBySlug(ctx, p.Slug)
	switch {
	case err == nil && other.ID != p.ID:
		return blog.Post{}, blog.ErrSlugTaken
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return blog.Post{}, fmt.Errorf("check slug: %w", err)
	}

	if err := deps.BlogStore.Save(ctx, p); err != nil {
		return blog.Post{}, fmt.Errorf("save post: %w", err)
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryContent, action).
		WithResource("blog_post", p.ID).
		WithDescription(p.Title))
	slog.Info("blog_post_saved", "post_id", p.ID, "slug", p.Slug, "actor_id", input.Actor.ID)
	return p, nil
}

// SetPostPublishedInput carries input for ExecuteSetPostPublished.
type SetPostPublishedInput struct {
	ID        string
	Published bool
	Actor     audit.Actor
}

// ExecuteSetPostPublished publishes or hides a post.
// PRE: Post exists; caller is staff
// POST: Published flag saved; PublishedAt keeps the first publish date
func ExecuteSetPostPublished(ctx context.Context, input SetPostPublishedInput, deps BlogDeps) (blog.Post, error) {
	now := nowFrom(deps.Now)
	p, err := deps.BlogStore.GetByID(ctx, input.ID)
	if err != nil {
		return blog.Post{}, fmt.Errorf("load post: %w", err)
	}
	if input.Published {
		err = p.Publish(now)
	} else {
		err = p.Unpublish(now)
	}
	if err != nil {
		return blog.Post{}, err
	}
	if err := deps.BlogStore.Save(ctx, p); err != nil {
		return blog.Post{}, fmt.Errorf("save post: %w", err)
	}
	desc := "unpublished " + p.Title
	if p.Published {
		desc = "published " + p.Title
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryContent, audit.ActionPublish).
		WithResource("blog_post", p.ID).
		WithDescription(desc))
	return p, nil
}

// ExecuteDeletePost removes a post.
// PRE: caller is staff
// POST: Post deleted and audited
func ExecuteDeletePost(ctx context.Context, id string, actor audit.Actor, deps BlogDeps) error {
	p, err := deps.BlogStore.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if err := deps.BlogStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(actor, audit.CategoryContent, audit.ActionDelete).
		WithSeverity(audit.SeverityWarning).
		WithResource("blog_post", id).
		WithDescription(p.Title))
	return nil
}
