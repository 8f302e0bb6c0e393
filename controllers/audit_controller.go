package controllers

import (
	"net/http"
	"strconv"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/services"
)

// AuditController serves the audit log
type AuditController struct {
	services *services.Services
}

// NewAuditController creates a new audit controller
func NewAuditController(services *services.Services) *AuditController {
	return &AuditController{
		services: services,
	}
}

// Index handles GET /logs?limit=; without a limit every entry is returned
func (c *AuditController) Index(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := c.services.Audit.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, entries)
}
