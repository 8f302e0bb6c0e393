package controllers

import (
	"net/http"
	"strconv"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/services"
)

// SearchController handles name lookup requests
type SearchController struct {
	services *services.Services
	defaults services.FuzzyOptions
}

// NewSearchController creates a new search controller
func NewSearchController(services *services.Services, defaults services.FuzzyOptions) *SearchController {
	return &SearchController{
		services: services,
		defaults: defaults,
	}
}

// Search handles GET /search?name=&mode=exact|fuzzy&limit=&cutoff=
func (c *SearchController) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query.Get("name")

	var (
		hits []services.SearchHit
		err  error
	)
	switch query.Get("mode") {
	case "exact":
		hits, err = c.services.Search.ExactSearch(r.Context(), name)
	case "", "fuzzy":
		opts, optsErr := c.fuzzyOptions(r)
		if optsErr != nil {
			writeError(w, r, optsErr)
			return
		}
		hits, err = c.services.Search.FuzzySearch(r.Context(), name, opts)
	default:
		err = apperr.Validation("mode must be exact or fuzzy")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, hits)
}

// Autocomplete handles GET /autocomplete?q=
func (c *SearchController) Autocomplete(w http.ResponseWriter, r *http.Request) {
	names, err := c.services.Search.Autocomplete(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, names)
}

func (c *SearchController) fuzzyOptions(r *http.Request) (services.FuzzyOptions, error) {
	opts := c.defaults
	if opts.MaxResults == 0 {
		opts = services.DefaultFuzzyOptions()
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperr.Validation("limit must be an integer")
		}
		opts.MaxResults = n
	}
	if v := r.URL.Query().Get("cutoff"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, apperr.Validation("cutoff must be a number")
		}
		opts.Cutoff = f
	}
	return opts, nil
}
