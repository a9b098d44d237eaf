/*
roster.go - Bulk roster load and export

PURPOSE:
  Populates the students and periods tables in one request, from the same
  YAML seed format the CLI imports (JSON is accepted too), and exports the
  current roster in that format.

HOW AN IMPORT WORKS:
 1. Parse and validate the whole document (nothing is written on error)
 2. With ?replace=true, empty both tables
 3. Upsert students by registration id
 4. Insert periods; a (section, weekday, subject, start) already stored is
    skipped and counted

USAGE VIA API:

	POST /api/roster/import?replace=true
	Content-Type: application/yaml

	students:
	  - {registration_id: "123", full_name: JOAO PEREIRA, section: T1}
	periods:
	  - {section: T1, weekday: SEGUNDA-FEIRA, subject: MATH, start: "07:00", end: "07:50"}

	GET /api/roster/export

NOTE:
  Replacing the roster does not touch the session or run history.

SEE ALSO:
  - seed/seed.go: document format and validation
  - cmd/attendance/app/roster.go: the same operations on the command line
*/
package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/seed"
)

// maxRosterBytes bounds one seed document.
const maxRosterBytes = 4 << 20

// ImportRoster loads a seed document into the store.
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	importer, ok := h.Store.(attendance.RosterImporter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support bulk import", nil)
		return
	}

	replace := false
	if v := r.URL.Query().Get("replace"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid replace flag", err)
			return
		}
		replace = b
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRosterBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	roster, err := seed.Parse(body)
	if err != nil {
		writeValidationError(w, err, nil)
		return
	}

	stats, err := importer.ImportRoster(r.Context(), roster, replace)
	if err != nil {
		writeStoreError(w, "Failed to import roster", err)
		return
	}
	h.Log.Info().Int("students", stats.Students).Int("periods", stats.Periods).
		Int("skipped", stats.Skipped).Bool("replace", replace).Msg("roster imported")
	writeJSON(w, http.StatusOK, stats)
}

// ExportRoster writes the current roster as a seed document.
func (h *Handler) ExportRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.Store.LoadRoster(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to load roster", err)
		return
	}
	data, err := seed.Encode(roster)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode roster", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="roster.yaml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
