package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"carimport/internal/application/listutil"
	"carimport/internal/application/orchestrators"
	"carimport/internal/application/projections"
	"carimport/internal/domain/calculator"
	"carimport/internal/domain/carrequest"
)

// homeStockCount and homePostCount size the landing page teasers.
const (
	homeStockCount = 6
	homePostCount  = 3
)

// Form options for the request form.
var (
	requestFuels = []string{carrequest.FuelAny, carrequest.FuelPetrol, carrequest.FuelDiesel,
		carrequest.FuelHybrid, carrequest.FuelElectric}
	requestTransmissions = []string{carrequest.TransmissionAny, carrequest.TransmissionManual,
		carrequest.TransmissionAutomatic}
)

func (s *server) stockDeps() projections.StockDeps {
	return projections.StockDeps{StockStore: s.Stores.StockStore, URLs: s.Blob}
}

// handleHome renders the landing page with recent stock and posts.
func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cars, err := projections.QueryListStock(ctx, projections.ListStockQuery{
		Sort: "created_at", Dir: "desc", PerPage: homeStockCount,
	}, s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	posts, err := projections.QueryListPosts(ctx, projections.ListPostsQuery{PerPage: homePostCount}, s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home.html", "Import your next car", map[string]any{
		"Cars":  cars.Cars,
		"Posts": posts.Posts,
	})
}

// stockQuery reads the public catalog filters from the query string.
func stockQuery(r *http.Request) (projections.ListStockQuery, error) {
	q := r.URL.Query()
	p := listutil.ParseListParams(q, projections.StockSortColumns, []string{"make", "fuel"})
	maxPrice, err := eurosToCents(q.Get("max_price"))
	if err != nil {
		return projections.ListStockQuery{}, err
	}
	return projections.ListStockQuery{
		Make:          p.Filters["make"],
		Fuel:          p.Filters["fuel"],
		MaxPriceCents: maxPrice,
		Sort:          p.Sort,
		Dir:           p.Dir,
		Page:          p.Page,
		PerPage:       p.PerPage,
	}, nil
}

// handleStockPage renders the public catalog (GET /stock).
func (s *server) handleStockPage(w http.ResponseWriter, r *http.Request) {
	query, err := stockQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := projections.QueryListStock(r.Context(), query, s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "stock_list.html", "Cars in stock", map[string]any{
		"Cars": res.Cars,
		"Page": res.Page,
	})
}

// handleStockCarPage renders one car (GET /stock/{id}).
func (s *server) handleStockCarPage(w http.ResponseWriter, r *http.Request) {
	car, err := projections.QueryGetStockCar(r.Context(), r.PathValue("id"), s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "stock_detail.html", car.Make+" "+car.Model, car)
}

// handleAPIStockList returns the public catalog as JSON.
func (s *server) handleAPIStockList(w http.ResponseWriter, r *http.Request) {
	query, err := stockQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := projections.QueryListStock(r.Context(), query, s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cars := make([]carJSON, 0, len(res.Cars))
	for _, c := range res.Cars {
		cars = append(cars, toCar(c, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars, "page": toPage(res.Page)})
}

func (s *server) handleAPIStockCar(w http.ResponseWriter, r *http.Request) {
	car, err := projections.QueryGetStockCar(r.Context(), r.PathValue("id"), s.stockDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCar(car, false))
}

// handleBlogPage renders published posts (GET /blog).
func (s *server) handleBlogPage(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), nil, nil)
	res, err := projections.QueryListPosts(r.Context(), projections.ListPostsQuery{
		Search: p.Search, Page: p.Page, PerPage: p.PerPage,
	}, s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "blog_list.html", "Blog", map[string]any{
		"Posts": res.Posts,
		"Page":  res.Page,
	})
}

// handleBlogPostPage renders a published post (GET /blog/{slug}).
func (s *server) handleBlogPostPage(w http.ResponseWriter, r *http.Request) {
	post, err := projections.QueryGetPost(r.Context(), r.PathValue("slug"), s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "blog_post.html", post.Title, post)
}

func (s *server) handleAPIPosts(w http.ResponseWriter, r *http.Request) {
	p := listutil.ParseListParams(r.URL.Query(), nil, nil)
	res, err := projections.QueryListPosts(r.Context(), projections.ListPostsQuery{
		Search: p.Search, Page: p.Page, PerPage: p.PerPage,
	}, s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPosts(res.Posts), "page": toPage(res.Page)})
}

func (s *server) handleAPIPost(w http.ResponseWriter, r *http.Request) {
	post, err := projections.QueryGetPost(r.Context(), r.PathValue("slug"), s.Stores.BlogStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := toPost(post.Post)
	v.BodyHTML = string(post.BodyHTML)
	writeJSON(w, http.StatusOK, v)
}

// handleCalculatorPage renders the import cost calculator.
func (s *server) handleCalculatorPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "calculator.html", "Import cost calculator", map[string]any{
		"Countries":   s.Rates.Countries(),
		"Destination": calculator.DefaultDestination,
	})
}

func (s *server) handleAPICountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"origins":             s.Rates.Countries(),
		"default_destination": calculator.DefaultDestination,
	})
}

// handleAPICalculate prices an import (POST /api/calculator).
// PRE: JSON body in the calculator.Input shape
// POST: Returns the cost breakdown; the calculation is tracked
func (s *server) handleAPICalculate(w http.ResponseWriter, r *http.Request) {
	var in calculator.Input
	if err := strictDecode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := orchestrators.ExecuteCalculate(r.Context(), orchestrators.CalculateInput{
		Input:     in,
		PageURL:   s.pageURL(r),
		UserAgent: r.UserAgent(),
		IP:        s.ip(r),
	}, orchestrators.CalculateDeps{Rates: s.Rates, Tracker: s.Tracker, Now: s.Now})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRequestForm renders the car request form (GET /request).
func (s *server) handleRequestForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "request_form.html", "Find me a car", map[string]any{
		"Fuels":         requestFuels,
		"Transmissions": requestTransmissions,
		"Countries":     s.Rates.Countries(),
	})
}

// handleRequestThanks confirms a submission and shows its reference.
func (s *server) handleRequestThanks(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "request_thanks.html", "Thank you", map[string]any{
		"Reference": r.URL.Query().Get("ref"),
	})
}

// carRequestBody is the JSON shape of a car request submission.
type carRequestBody struct {
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Country      string `json:"country"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	YearFrom     int    `json:"year_from"`
	YearTo       int    `json:"year_to"`
	BudgetCents  int64  `json:"budget_cents"`
	Fuel         string `json:"fuel"`
	Transmission string `json:"transmission"`
	MaxMileageKm int    `json:"max_mileage_km"`
	Color        string `json:"color"`
	Notes        string `json:"notes"`
}

// carRequestFromForm reads the HTML form, where the budget is entered in euros.
func carRequestFromForm(r *http.Request) (carRequestBody, error) {
	if err := r.ParseForm(); err != nil {
		return carRequestBody{}, errors.Join(errBadInput, err)
	}
	var errs []error
	num := func(name string) int {
		n, err := atoi(r.PostFormValue(name))
		errs = append(errs, err)
		return n
	}
	b := carRequestBody{
		ContactName:  r.PostFormValue("contact_name"),
		ContactEmail: r.PostFormValue("contact_email"),
		ContactPhone: r.PostFormValue("contact_phone"),
		Country:      r.PostFormValue("country"),
		Make:         r.PostFormValue("make"),
		Model:        r.PostFormValue("model"),
		YearFrom:     num("year_from"),
		YearTo:       num("year_to"),
		Fuel:         r.PostFormValue("fuel"),
		Transmission: r.PostFormValue("transmission"),
		MaxMileageKm: num("max_mileage_km"),
		Color:        r.PostFormValue("color"),
		Notes:        r.PostFormValue("notes"),
	}
	budget, err := eurosToCents(r.PostFormValue("budget"))
	errs = append(errs, err)
	b.BudgetCents = budget
	return b, errors.Join(errs...)
}

// handleSubmitCarRequest takes a car request from the form or the API.
// PRE: Anonymous or logged-in caller; logged-in customers own the request
// POST: Request saved as new, customer and admin emails queued, event tracked.
// Form posts redirect to the thank-you page; JSON gets 201 with the request.
func (s *server) handleSubmitCarRequest(w http.ResponseWriter, r *http.Request) {
	form := isFormPost(r)
	var body carRequestBody
	var err error
	if form {
		body, err = carRequestFromForm(r)
	} else {
		err = strictDecode(w, r, &body)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess := session(r)
	req, err := orchestrators.ExecuteSubmitCarRequest(r.Context(), orchestrators.SubmitCarRequestInput{
		AccountID:    sess.AccountID,
		ContactName:  body.ContactName,
		ContactEmail: body.ContactEmail,
		ContactPhone: body.ContactPhone,
		Country:      body.Country,
		Make:         body.Make,
		Model:        body.Model,
		YearFrom:     body.YearFrom,
		YearTo:       body.YearTo,
		BudgetCents:  body.BudgetCents,
		Fuel:         body.Fuel,
		Transmission: body.Transmission,
		MaxMileageKm: body.MaxMileageKm,
		Color:        body.Color,
		Notes:        body.Notes,
		PageURL:      s.pageURL(r),
		Referrer:     r.Referer(),
		UserAgent:    r.UserAgent(),
		IP:           s.ip(r),
	}, orchestrators.SubmitCarRequestDeps{
		RequestStore: s.Stores.CarRequestStore,
		Notifier:     s.Notifier,
		Tracker:      s.Tracker,
		GenerateID:   s.GenerateID,
		Now:          s.Now,
	})
	if err != nil {
		if form {
			status, msg := classify(err)
			if status == http.StatusBadRequest {
				s.render(w, r, status, "request_form.html", "Find me a car", map[string]any{
					"Fuels":         requestFuels,
					"Transmissions": requestTransmissions,
					"Countries":     s.Rates.Countries(),
					"Error":         msg,
					"Form":          body,
				})
				return
			}
		}
		s.fail(w, r, err)
		return
	}
	if form {
		http.Redirect(w, r, "/request/thanks?ref="+url.QueryEscape(req.Reference), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, toRequest(req, false))
}

// handleMedia streams a stored blob (GET /media/{key...}).
// PRE: stock/ and blog/ keys are public; documents/<account>/ keys need the
// owning customer or staff
// POST: Private files are served with no-store caching
func (s *server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if s.Blob == nil {
		http.NotFound(w, r)
		return
	}
	key := r.PathValue("key")
	private := false
	switch {
	case strings.HasPrefix(key, "stock/"), strings.HasPrefix(key, "blog/"):
	case strings.HasPrefix(key, "documents/"):
		private = true
		sess := session(r)
		owner := strings.SplitN(strings.TrimPrefix(key, "documents/"), "/", 2)[0]
		if sess.AccountID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if sess.AccountID != owner && !isStaffSession(sess.Role) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	data, contentType, err := s.Blob.Get(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if private {
		w.Header().Set("Cache-Control", "private, no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	w.Write(data)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
