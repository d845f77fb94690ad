package web

import (
	"net/http"
	"strings"

	"carimport/internal/application/listutil"
	"carimport/internal/application/orchestrators"
	"carimport/internal/application/projections"
	"carimport/internal/domain/upload"
)

func (s *server) stockCommandDeps() orchestrators.StockDeps {
	return orchestrators.StockDeps{
		StockStore: s.Stores.StockStore,
		Blob:       s.Blob,
		AuditStore: s.Stores.AuditStore,
		GenerateID: s.GenerateID,
		Now:        s.Now,
	}
}

// handleAdminStockList lists every car regardless of status unless ?status= narrows it.
func (s *server) handleAdminStockList(w http.ResponseWriter, r *http.Request) {
	query, err := stockQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query.Status = r.URL.Query().Get("status")
	if query.Status == "" {
		query.Status = "all"
	}
	res, err := projections.QueryListStock(r.Context(), query, s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cars := make([]carJSON, 0, len(res.Cars))
	for _, c := range res.Cars {
		cars = append(cars, toCar(c, true))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars, "page": toPage(res.Page)})
}

type carBody struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	MileageKm    int    `json:"mileage_km"`
	Fuel         string `json:"fuel"`
	Transmission string `json:"transmission"`
	PriceCents   int64  `json:"price_cents"`
	Color        string `json:"color"`
	Description  string `json:"description"`
	Status       string `json:"status"`
}

// handleAdminSaveCar creates (POST) or replaces (PUT /{id}) a stock car.
// POST: 201 on create, 200 on update
func (s *server) handleAdminSaveCar(w http.ResponseWriter, r *http.Request) {
	var body carBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	car, err := orchestrators.ExecuteSaveCar(r.Context(), orchestrators.SaveCarInput{
		ID:           id,
		Make:         body.Make,
		Model:        body.Model,
		Year:         body.Year,
		MileageKm:    body.MileageKm,
		Fuel:         body.Fuel,
		Transmission: body.Transmission,
		PriceCents:   body.PriceCents,
		Color:        body.Color,
		Description:  body.Description,
		Status:       body.Status,
		Actor:        s.actor(r),
	}, s.stockCommandDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, toCar(projections.CarView{Car: car}, true))
}

// handleAdminDeleteCar removes a car and its images.
func (s *server) handleAdminDeleteCar(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteDeleteCar(r.Context(), r.PathValue("id"), s.actor(r), s.stockCommandDeps()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminAddCarImage attaches a photo sent as multipart field "file".
func (s *server) handleAdminAddCarImage(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, upload.MaxImageBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	car, err := orchestrators.ExecuteAddCarImage(r.Context(), orchestrators.AddCarImageInput{
		CarID:    r.PathValue("id"),
		FileName: name,
		Data:     data,
		Actor:    s.actor(r),
	}, s.stockCommandDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := projections.QueryGetStockCar(r.Context(), car.ID, s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCar(view, true))
}

// handleAdminRemoveCarImage detaches the image named by ?key= and deletes its blob.
func (s *server) handleAdminRemoveCarImage(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.fail(w, r, errBadInput)
		return
	}
	car, err := orchestrators.ExecuteRemoveCarImage(r.Context(), r.PathValue("id"), key, s.actor(r), s.stockCommandDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCar(projections.CarView{Car: car}, true))
}

func (s *server) blogDeps() orchestrators.BlogDeps {
	return orchestrators.BlogDeps{
		BlogStore:  s.Stores.BlogStore,
		AuditStore: s.Stores.AuditStore,
		GenerateID: s.GenerateID,
		Now:        s.Now,
	}
}

// handleAdminPosts lists drafts and published posts.
func (s *server) handleAdminPosts(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), nil, nil)
	res, err := projections.QueryListPosts(r.Context(), projections.ListPostsQuery{
		IncludeDrafts: true,
		Search:        p.Search,
		Page:          p.Page,
		PerPage:       p.PerPage,
	}, s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPosts(res.Posts), "page": toPage(res.Page)})
}

type postBody struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	BodyMarkdown string `json:"body_markdown"`
	CoverImage   string `json:"cover_image"`
}

// handleAdminSavePost creates (POST) or edits (PUT /{id}) a post.
// Publishing is a separate step.
func (s *server) handleAdminSavePost(w http.ResponseWriter, r *http.Request) {
	var body postBody
	if err := strictDecode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	post, err := orchestrators.ExecuteSavePost(r.Context(), orchestrators.SavePostInput{
		ID:           id,
		Slug:         body.Slug,
		Title:        body.Title,
		Summary:      body.Summary,
		BodyMarkdown: body.BodyMarkdown,
		CoverImage:   body.CoverImage,
		Actor:        s.actor(r),
	}, s.blogDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	v := toPost(post)
	v.Body = post.BodyMarkdown
	writeJSON(w, status, v)
}

// handleAdminPreviewPost returns a post, draft or not, with rendered HTML.
func (s *server) handleAdminPreviewPost(w http.ResponseWriter, r *http.Request) {
	post, err := projections.QueryPreviewPost(r.Context(), r.PathValue("id"), s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := toPost(post.Post)
	v.Body = post.BodyMarkdown
	v.BodyHTML = string(post.BodyHTML)
	writeJSON(w, http.StatusOK, v)
}

func (s *server) handleAdminDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteDeletePost(r.Context(), r.PathValue("id"), s.actor(r), s.blogDeps()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminPublishPost serves both /publish and /unpublish.
func (s *server) handleAdminPublishPost(w http.ResponseWriter, r *http.Request) {
	post, err := orchestrators.ExecuteSetPostPublished(r.Context(), orchestrators.SetPostPublishedInput{
		ID:        r.PathValue("id"),
		Published: strings.HasSuffix(r.URL.Path, "/publish"),
		Actor:     s.actor(r),
	}, s.blogDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPost(post))
}
