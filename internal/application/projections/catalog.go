package projections

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"carimport/internal/adapters/storage"
	blogStore "carimport/internal/adapters/storage/blog"
	stockStore "carimport/internal/adapters/storage/stock"
	"carimport/internal/application/listutil"
	"carimport/internal/domain/blog"
	"carimport/internal/domain/stock"
)

// StockSortColumns are the columns the public stock list can be sorted by.
var StockSortColumns = []string{"price", "year", "mileage", "created_at"}

// URLResolver turns blob keys into browser links.
type URLResolver interface {
	URL(ctx context.Context, key string) (string, error)
}

// CarView is a stock car with resolved image links.
type CarView struct {
	stock.Car
	ImageURLs []string
}

// ListStockQuery carries query parameters.
type ListStockQuery struct {
	Make          string
	Fuel          string
	MaxPriceCents int64
	Status        string // empty means available; "all" lists every status
	Sort          string
	Dir           string
	Page          int
	PerPage       int
}

// ListStockResult carries the query result.
type ListStockResult struct {
	Cars []CarView
	Page listutil.PageInfo
}

// StockDeps holds dependencies for the stock queries.
type StockDeps struct {
	StockStore StockStore
	URLs       URLResolver // optional
}

// QueryListStock returns one page of the stock catalog.
// PRE: Status is empty, "all" or a known stock status
// POST: Each car carries at most its cover image link
func QueryListStock(ctx context.Context, query ListStockQuery, deps StockDeps) (ListStockResult, error) {
	status := query.Status
	switch {
	case status == "":
		status = stock.StatusAvailable
	case status == "all":
		status = ""
	case !stock.IsValidStatus(status):
		return ListStockResult{}, stock.ErrInvalidStatus
	}
	filter := stockStore.ListFilter{
		Status:        status,
		Make:          strings.TrimSpace(query.Make),
		Fuel:          query.Fuel,
		MaxPriceCents: query.MaxPriceCents,
		Sort:          query.Sort,
		Dir:           query.Dir,
	}
	total, err := deps.StockStore.Count(ctx, filter)
	if err != nil {
		return ListStockResult{}, fmt.Errorf("count stock: %w", err)
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()
	cars, err := deps.StockStore.List(ctx, filter)
	if err != nil {
		return ListStockResult{}, fmt.Errorf("list stock: %w", err)
	}
	res := ListStockResult{Cars: make([]CarView, 0, len(cars)), Page: page}
	for _, c := range cars {
		view := CarView{Car: c}
		if cover := c.CoverImage(); cover != "" {
			view.ImageURLs = resolveURLs(ctx, deps.URLs, []string{cover})
		}
		res.Cars = append(res.Cars, view)
	}
	return res, nil
}

// QueryGetStockCar loads one car with all image links.
// PRE: id is set
// POST: Sold and reserved cars are still returned; the page shows their status
func QueryGetStockCar(ctx context.Context, id string, deps StockDeps) (CarView, error) {
	c, err := deps.StockStore.GetByID(ctx, id)
	if err != nil {
		return CarView{}, err
	}
	return CarView{Car: c, ImageURLs: resolveURLs(ctx, deps.URLs, c.Images)}, nil
}

// resolveURLs skips keys the resolver cannot link.
func resolveURLs(ctx context.Context, r URLResolver, keys []string) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if u, err := r.URL(ctx, k); err == nil {
			out = append(out, u)
		}
	}
	return out
}

// markdown renders post bodies. Raw HTML in the source is not passed
// through because WithUnsafe is not set.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// RenderMarkdown converts post markdown to safe HTML.
func RenderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// ListPostsQuery carries query parameters.
type ListPostsQuery struct {
	IncludeDrafts bool // admin console
	Search        string
	Page          int
	PerPage       int
}

// ListPostsResult carries the query result.
type ListPostsResult struct {
	Posts []blog.Post
	Page  listutil.PageInfo
}

// QueryListPosts returns one page of blog posts.
// PRE: none
// POST: Without IncludeDrafts only published posts are returned, newest first
func QueryListPosts(ctx context.Context, query ListPostsQuery, store BlogStore) (ListPostsResult, error) {
	filter := blogStore.ListFilter{PublishedOnly: !query.IncludeDrafts, Search: query.Search}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return ListPostsResult{}, fmt.Errorf("count posts: %w", err)
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()
	posts, err := store.List(ctx, filter)
	if err != nil {
		return ListPostsResult{}, fmt.Errorf("list posts: %w", err)
	}
	return ListPostsResult{Posts: posts, Page: page}, nil
}

// PostView is a post with its rendered body.
type PostView struct {
	blog.Post
	BodyHTML template.HTML
}

// QueryGetPost loads a published post by slug.
// PRE: slug is set
// POST: Drafts are reported as not found
func QueryGetPost(ctx context.Context, slug string, store BlogStore) (PostView, error) {
	p, err := store.GetBySlug(ctx, slug)
	if err != nil {
		return PostView{}, err
	}
	if !p.Published {
		return PostView{}, storage.NotFound("post", slug)
	}
	return renderPost(p)
}

// QueryPreviewPost loads any post by ID for the admin preview.
func QueryPreviewPost(ctx context.Context, id string, store BlogStore) (PostView, error) {
	p, err := store.GetByID(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	return renderPost(p)
}

func renderPost(p blog.Post) (PostView, error) {
	body, err := RenderMarkdown(p.BodyMarkdown)
	if err != nil {
		return PostView{}, err
	}
	return PostView{Post: p, BodyHTML: body}, nil
}
