package services

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/blogem/memorial-registry/access"
	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/logging"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/tabular"
	"github.com/blogem/memorial-registry/telemetry"
	"github.com/blogem/memorial-registry/userctx"
)

// ExportHeader is the canonical column set written by Export
var ExportHeader = []string{"name", "side", "area", "row", "column"}

// columnAliases maps each canonical column to the headers accepted on import,
// including those used by the legacy Chinese spreadsheets.
var columnAliases = map[string][]string{
	"name":   {"name", "姓名"},
	"side":   {"side", "側"},
	"area":   {"area", "區"},
	"row":    {"row", "行"},
	"column": {"column", "列"},
}

// ImportResult reports how many rows an import added and skipped
type ImportResult struct {
	Added   int `json:"addedCount"`
	Skipped int `json:"skippedCount"`
}

// TransferService interface defines spreadsheet import and export
type TransferService interface {
	Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error)
	Export(ctx context.Context, w io.Writer, format tabular.Format) (int, error)
}

type transferService struct {
	store        *repositories.Store
	gate         access.Gate
	dedup        bool
	publicExport bool
}

// NewTransferService creates a new transfer service. With dedup set, rows
// whose name already exists are skipped.
func NewTransferService(store *repositories.Store, gate access.Gate, dedup, publicExport bool) TransferService {
	return &transferService{
		store:        store,
		gate:         gate,
		dedup:        dedup,
		publicExport: publicExport,
	}
}

// Import reads a spreadsheet and inserts its valid rows in one transaction.
// Rows with missing or malformed cells, and (with dedup) rows whose name is
// already stored, are skipped. A document that cannot be parsed fails as a
// whole and changes nothing.
func (s *transferService) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	actor, err := access.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	table, err := tabular.Decode(r, filename)
	if err != nil {
		return nil, apperr.ImportFormat("file is not a readable spreadsheet", err)
	}

	records, skipped := recordsFromTable(table)

	result := &ImportResult{Skipped: skipped}
	err = withAudit(ctx, s.store, actor.DisplayName(), func(tx *repositories.Repositories) (string, error) {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return "", fmt.Errorf("import cancelled: %w", err)
			}

			if s.dedup {
				exists, err := tx.Records.ExistsByName(ctx, records[i].Name)
				if err != nil {
					return "", err
				}
				if exists {
					result.Skipped++
					continue
				}
			}

			if err := tx.Records.Create(ctx, &records[i]); err != nil {
				return "", err
			}
			result.Added++
		}
		return fmt.Sprintf("imported %d rows (skipped %d)", result.Added, result.Skipped), nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.ImportRowsTotal.WithLabelValues("added").Add(float64(result.Added))
	telemetry.ImportRowsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	logging.FromContext(ctx).Info("import completed",
		"file", filename,
		"added", result.Added,
		"skipped", result.Skipped,
		"actor", actor.DisplayName(),
	)
	return result, nil
}

// Export writes every record to w in store order and returns the row count
func (s *transferService) Export(ctx context.Context, w io.Writer, format tabular.Format) (int, error) {
	actorName := userctx.GetActorName(ctx)
	if !s.publicExport {
		actor, err := access.RequireAdmin(ctx, s.gate)
		if err != nil {
			return 0, err
		}
		actorName = actor.DisplayName()
	}

	var buf bytes.Buffer
	var count int
	err := withAudit(ctx, s.store, actorName, func(tx *repositories.Repositories) (string, error) {
		records, err := tx.Records.GetAll(ctx)
		if err != nil {
			return "", err
		}
		if err := encodeRecords(&buf, format, records); err != nil {
			return "", err
		}
		count = len(records)
		return fmt.Sprintf("exported data (%d records)", count), nil
	})
	if err != nil {
		return 0, err
	}

	if _, err := buf.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	return count, nil
}

func encodeRecords(w io.Writer, format tabular.Format, records []models.Memorial) error {
	rows := make([][]any, 0, len(records))
	for _, m := range records {
		rows = append(rows, []any{m.Name, string(m.Side), m.Area, m.Row, m.Column})
	}
	if err := tabular.Encode(w, format, ExportHeader, rows); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// recordsFromTable converts table rows into records. Rows with a blank or
// malformed required cell are counted in skipped; a header without one of
// the required columns therefore skips every row.
func recordsFromTable(table *tabular.Table) (records []models.Memorial, skipped int) {
	idx := make(map[string]int, len(columnAliases))
	for _, col := range ExportHeader {
		idx[col] = table.Index(columnAliases[col]...)
	}

	for _, row := range table.Rows {
		record, ok := parseRow(row, idx)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}
	return records, skipped
}

func parseRow(row []string, idx map[string]int) (models.Memorial, bool) {
	name := tabular.Cell(row, idx["name"])
	if name == "" || len([]rune(name)) > models.MaxNameLength {
		return models.Memorial{}, false
	}

	side, err := models.ParseSide(tabular.Cell(row, idx["side"]))
	if err != nil {
		return models.Memorial{}, false
	}

	var pos [3]int
	for i, col := range []string{"area", "row", "column"} {
		n, err := models.ParsePosition(tabular.Cell(row, idx[col]))
		if err != nil {
			return models.Memorial{}, false
		}
		pos[i] = n
	}

	return models.Memorial{Name: name, Side: side, Area: pos[0], Row: pos[1], Column: pos[2]}, true
}
