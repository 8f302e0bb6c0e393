package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/memorial-registry/services"
)

// BackupController handles snapshot and restore requests
type BackupController struct {
	services *services.Services
}

// NewBackupController creates a new backup controller
func NewBackupController(services *services.Services) *BackupController {
	return &BackupController{
		services: services,
	}
}

// Index handles GET /backups
func (c *BackupController) Index(w http.ResponseWriter, r *http.Request) {
	backups, err := c.services.Backup.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, backups)
}

// Create handles POST /backups
func (c *BackupController) Create(w http.ResponseWriter, r *http.Request) {
	backup, err := c.services.Backup.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, backup)
}

// Restore handles POST /backups/{name}/restore
func (c *BackupController) Restore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	restored, err := c.services.Backup.Restore(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":          name,
		"restoredCount": restored,
	})
}
