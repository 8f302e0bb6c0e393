package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/services"
)

// RecordController handles memorial record management requests
type RecordController struct {
	services *services.Services
}

// NewRecordController creates a new record controller
func NewRecordController(services *services.Services) *RecordController {
	return &RecordController{
		services: services,
	}
}

// Index handles GET /records
func (c *RecordController) Index(w http.ResponseWriter, r *http.Request) {
	records, err := c.services.Records.ListRecords(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, records)
}

// Show handles GET /records/{id}
func (c *RecordController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := c.services.Records.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, record)
}

// Create handles POST /records
func (c *RecordController) Create(w http.ResponseWriter, r *http.Request) {
	var form models.MemorialForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := c.services.Records.CreateRecord(r.Context(), &form)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/records/"+strconv.FormatInt(record.ID, 10))
	writeJSON(w, r, http.StatusCreated, record)
}

// Update handles PUT /records/{id}; only the supplied fields change
func (c *RecordController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch models.MemorialPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := c.services.Records.UpdateRecord(r.Context(), id, &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, record)
}

// Delete handles DELETE /records/{id}
func (c *RecordController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := c.services.Records.DeleteRecord(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func recordID(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("memorial with ID %q not found", idStr)
	}
	return id, nil
}
