package blog

import (
	"context"
	"database/sql"
	"errors"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/blog"
)

const selectColumns = `SELECT id, slug, title, summary, body_markdown, cover_image, published, published_at,
	author_id, created_at, updated_at FROM blog_post`

// SQLStore implements Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new blog post store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a post by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Post{}, storage.NotFound("blog post", id)
	}
	return p, err
}

// GetBySlug retrieves a post by its slug, published or not.
func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (domain.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, selectColumns+" WHERE slug = ?", slug).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Post{}, storage.NotFound("blog post", slug)
	}
	return p, err
}

// Save persists a post (insert or update).
// PRE: entity has been validated; the slug is not used by another post
// POST: Entity is persisted
func (s *SQLStore) Save(ctx context.Context, p domain.Post) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blog_post (id, slug, title, summary, body_markdown, cover_image, published, published_at,
			author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   slug=excluded.slug, title=excluded.title, summary=excluded.summary,
		   body_markdown=excluded.body_markdown, cover_image=excluded.cover_image,
		   published=excluded.published, published_at=excluded.published_at, updated_at=excluded.updated_at`,
		p.ID, p.Slug, p.Title, p.Summary, p.BodyMarkdown, p.CoverImage, storage.BoolInt(p.Published),
		storage.FormatTime(p.PublishedAt), p.AuthorID, storage.FormatTime(p.CreatedAt), storage.FormatTime(p.UpdatedAt))
	return err
}

// Delete removes a post.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blog_post WHERE id = ?", id)
	return err
}

// List returns posts matching the filter. Published listings are ordered by
// publish date, admin listings by last edit.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Post, error) {
	where, args := listWhereClause(filter)
	order := " ORDER BY updated_at DESC, id"
	if filter.PublishedOnly {
		order = " ORDER BY published_at DESC, id"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, selectColumns+where+order+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Post
	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// Count returns the number of posts matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blog_post"+where, args...).Scan(&n)
	return n, err
}

func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.PublishedOnly {
		where += " AND published = 1"
	}
	if filter.Search != "" {
		where += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(summary) LIKE ? ESCAPE '\')`
		term := storage.LikePattern(filter.Search)
		args = append(args, term, term)
	}
	return where, args
}

func scanPost(scan func(dest ...any) error) (domain.Post, error) {
	var p domain.Post
	var published int
	var publishedAt, createdAt, updatedAt string
	err := scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.BodyMarkdown, &p.CoverImage, &published, &publishedAt,
		&p.AuthorID, &createdAt, &updatedAt)
	if err != nil {
		return domain.Post{}, err
	}
	p.Published = published == 1
	p.PublishedAt = storage.ParseTime(publishedAt)
	p.CreatedAt = storage.ParseTime(createdAt)
	p.UpdatedAt = storage.ParseTime(updatedAt)
	return p, nil
}
