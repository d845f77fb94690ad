package blog_test

import (
	"strings"
	"testing"
	"time"

	"carimport/internal/domain/blog"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"How to import a car from Germany", "how-to-import-a-car-from-germany"},
		{"  Uvoz automobila: carina & PDV  ", "uvoz-automobila-carina-pdv"},
		{"Đakovo → Zagreb: 5 savjeta", "dakovo-zagreb-5-savjeta"},
		{"Straße über Köln", "strasse-uber-koln"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := blog.Slugify(tt.title); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
	long := blog.Slugify(strings.Repeat("word ", 40))
	if len(long) > blog.MaxSlugLength || strings.HasSuffix(long, "-") {
		t.Errorf("long slug = %q", long)
	}
}

// TestPost_Validate tests validation of Post.
func TestPost_Validate(t *testing.T) {
	tests := []struct {
		name    string
		post    blog.Post
		wantErr error
	}{
		{"valid with derived slug", blog.Post{Title: "Customs duty explained", BodyMarkdown: "# Duty"}, nil},
		{"explicit slug", blog.Post{Title: "X", Slug: "my-post", BodyMarkdown: "body"}, nil},
		{"bad slug", blog.Post{Title: "X", Slug: "My Post!", BodyMarkdown: "body"}, blog.ErrInvalidSlug},
		{"no title", blog.Post{BodyMarkdown: "body"}, blog.ErrEmptyTitle},
		{"no body", blog.Post{Title: "Title"}, blog.ErrEmptyBody},
		{"title only symbols", blog.Post{Title: "???", BodyMarkdown: "body"}, blog.ErrInvalidSlug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.post
			p.Normalize()
			if err := p.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPost_PublishUnpublish(t *testing.T) {
	first := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)
	p := blog.Post{}
	if err := p.Publish(first); err != nil {
		t.Fatalf("Publish() = %v", err)
	}
	if err := p.Publish(first); err != blog.ErrAlreadyPublic {
		t.Errorf("second Publish() = %v", err)
	}
	if err := p.Unpublish(later); err != nil {
		t.Fatalf("Unpublish() = %v", err)
	}
	if err := p.Publish(later); err != nil {
		t.Fatalf("re-Publish() = %v", err)
	}
	if !p.PublishedAt.Equal(first) {
		t.Errorf("PublishedAt = %v, want original %v", p.PublishedAt, first)
	}
}
