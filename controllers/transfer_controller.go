package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/services"
	"github.com/blogem/memorial-registry/tabular"
)

const defaultImportMaxBytes = 10 << 20

// TransferController handles spreadsheet import and export requests
type TransferController struct {
	services *services.Services
	maxBytes int64
}

// NewTransferController creates a new transfer controller. Uploads larger
// than maxBytes are rejected.
func NewTransferController(services *services.Services, maxBytes int64) *TransferController {
	if maxBytes <= 0 {
		maxBytes = defaultImportMaxBytes
	}
	return &TransferController{
		services: services,
		maxBytes: maxBytes,
	}
}

// Import handles POST /import with the spreadsheet in multipart field "file"
func (c *TransferController) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperr.ImportFormat(fmt.Sprintf("upload exceeds %d bytes", c.maxBytes), err))
			return
		}
		writeError(w, r, apperr.ImportFormat("multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	result, err := c.services.Transfer.Import(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// Export handles GET /export?format=xlsx|csv as a file download
func (c *TransferController) Export(w http.ResponseWriter, r *http.Request) {
	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, apperr.Validation(err.Error()))
		return
	}

	var buf bytes.Buffer
	if _, err := c.services.Transfer.Export(r.Context(), &buf, format); err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("memorials-%s.%s", time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
