package blog

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"carimport/internal/domain/sanitize"
)

// Field limits.
const (
	MaxTitleLength   = 160
	MaxSummaryLength = 400
	MaxSlugLength    = 80
	MaxBodyLength    = 100_000
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Domain errors
var (
	ErrEmptyTitle     = errors.New("title is required")
	ErrTitleTooLong   = errors.New("title cannot exceed 160 characters")
	ErrSummaryTooLong = errors.New("summary cannot exceed 400 characters")
	ErrEmptyBody      = errors.New("body is required")
	ErrBodyTooLong    = errors.New("body is too long")
	ErrInvalidSlug    = errors.New("slug may contain only lowercase letters, digits and dashes")
	ErrSlugTaken      = errors.New("slug is already used by another post")
	ErrAlreadyPublic  = errors.New("post is already published")
	ErrNotPublished   = errors.New("post is not published")
)

// Post is a blog article shown on the public site once published.
type Post struct {
	ID           string
	Slug         string
	Title        string
	Summary      string
	BodyMarkdown string
	CoverImage   string
	Published    bool
	PublishedAt  time.Time
	AuthorID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Slugify turns a title into a URL slug: transliterated, lowercase, dash separated.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(title)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == 'đ':
			b.WriteString("d")
			dash = false
		case r == 'ß':
			b.WriteString("ss")
			dash = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// Normalize cleans inputs and derives the slug from the title when empty.
func (p *Post) Normalize() {
	p.Title = sanitize.Line(p.Title)
	p.Summary = sanitize.Line(p.Summary)
	p.BodyMarkdown = sanitize.Text(p.BodyMarkdown)
	p.CoverImage = sanitize.Line(p.CoverImage)
	p.Slug = strings.ToLower(sanitize.Line(p.Slug))
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
}

// Validate checks the post.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (p *Post) Validate() error {
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(p.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(p.Summary) > MaxSummaryLength {
		return ErrSummaryTooLong
	}
	if p.BodyMarkdown == "" {
		return ErrEmptyBody
	}
	if utf8.RuneCountInString(p.BodyMarkdown) > MaxBodyLength {
		return ErrBodyTooLong
	}
	if len(p.Slug) > MaxSlugLength || !slugRegex.MatchString(p.Slug) {
		return ErrInvalidSlug
	}
	return nil
}

// Publish makes the post public.
// POST: Published is true, PublishedAt set on first publish
func (p *Post) Publish(now time.Time) error {
	if p.Published {
		return ErrAlreadyPublic
	}
	p.Published = true
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}
	p.UpdatedAt = now
	return nil
}

// Unpublish hides the post again, keeping its original publish date.
func (p *Post) Unpublish(now time.Time) error {
	if !p.Published {
		return ErrNotPublished
	}
	p.Published = false
	p.UpdatedAt = now
	return nil
}
