/*
Package report writes reconciliation results as Excel workbooks.

WORKBOOKS:
  Detailed (relatorio_faltas_detalhado.xlsx by default)
    - one sheet per day, named dd-mm-yyyy, holding that day's absence tally
    - day sheets already in the file are kept; a day written again replaces
      its sheet
    - a summary sheet "Quantitativo Total da Semana" recomputed from every
      day sheet, with a STATUS column (PENDENTE / LANÇADA drop-down)

  Simple (relatorio_frequencia_ddmmyy.xlsx)
    - one sheet listing the day's anomalies, grouped under "TURMA: <section>"
      and colored by kind

SEE ALSO:
  - detailed.go, simple.go: the two layouts
  - styles.go: fills and fonts
*/
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/warp/attendance-engine/attendance"
)

const (
	DefaultDetailedFile = "relatorio_faltas_detalhado.xlsx"
	DefaultSimplePrefix = "relatorio_frequencia_"
	SummarySheet        = "Quantitativo Total da Semana"

	StatusPending = "PENDENTE"
	StatusPosted  = "LANÇADA"

	// simple workbook file names carry the date as ddmmyy
	simpleDateLayout = "020106"
)

// Writer places both workbooks in Dir. It is safe for concurrent use:
// writes through one Writer are serialized, so a day merged into the
// detailed workbook is never lost to another write in flight.
type Writer struct {
	Dir          string
	DetailedFile string
	SimplePrefix string
	Log          attendance.LineLogger

	mu sync.Mutex
}

// NewWriter returns a writer with default file names.
func NewWriter(dir string, log attendance.LineLogger) *Writer {
	if log == nil {
		log = attendance.DiscardLines
	}
	return &Writer{
		Dir:          dir,
		DetailedFile: DefaultDetailedFile,
		SimplePrefix: DefaultSimplePrefix,
		Log:          log,
	}
}

// Paths lists the files one Write produced. Simple is empty when the day
// had no anomalies.
type Paths struct {
	Detailed string `json:"detailed"`
	Simple   string `json:"simple,omitempty"`
}

// Write produces both workbooks for one day.
func (w *Writer) Write(r *attendance.DayResult) (Paths, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	detailed, err := w.writeDetailed([]*attendance.DayResult{r})
	if err != nil {
		return Paths{}, err
	}
	simple, err := w.writeSimple(r)
	if err != nil {
		return Paths{Detailed: detailed}, err
	}
	return Paths{Detailed: detailed, Simple: simple}, nil
}

// DetailedPath is the multi-day workbook location.
func (w *Writer) DetailedPath() string {
	return filepath.Join(w.Dir, w.DetailedFile)
}

// SimplePath is the per-day workbook location for date.
func (w *Writer) SimplePath(r *attendance.DayResult) string {
	return filepath.Join(w.Dir, w.SimplePrefix+r.Date.Format(simpleDateLayout)+".xlsx")
}

func (w *Writer) ensureDir() error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return nil
}

func (w *Writer) warn(format string, args ...any) {
	if w.Log != nil {
		w.Log(fmt.Sprintf(format, args...))
	}
}
