package export

import (
    "encoding/csv"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "time"

    "github.com/deploypulse/deploypulse/internal/domain"
)

// CSV column layout shared by `deploypulse fetch` and `deploypulse analyze`:
// type,id,author,date,message with RFC3339 dates.
var header = []string{"type", "id", "author", "date", "message"}

func WriteCSV(path string, records []domain.RawRecord) error {
    f, err := os.Create(path)
    if err != nil { return err }
    defer f.Close()
    w := csv.NewWriter(f)
    if err := w.Write(header); err != nil { return err }
    for _, r := range records {
        row := []string{string(r.Kind), r.ID, r.Author, r.At.UTC().Format(time.RFC3339), r.Message}
        if err := w.Write(row); err != nil { return err }
    }
    w.Flush()
    return w.Error()
}

func LoadCSV(path string) ([]domain.RawRecord, error) {
    f, err := os.Open(path)
    if err != nil { return nil, err }
    defer f.Close()
    return ReadCSV(f)
}

// ReadCSV parses exported rows. Rows with an unparseable date are skipped
// rather than failing the whole file; the forge occasionally returns commits
// with no author date at all.
func ReadCSV(r io.Reader) ([]domain.RawRecord, error) {
    cr := csv.NewReader(r)
    cr.FieldsPerRecord = len(header)
    rows, err := cr.ReadAll()
    if err != nil { return nil, err }
    if len(rows) == 0 { return nil, fmt.Errorf("export: empty csv") }
    if rows[0][0] != header[0] { return nil, fmt.Errorf("export: unexpected header %v", rows[0]) }

    out := make([]domain.RawRecord, 0, len(rows)-1)
    for _, row := range rows[1:] {
        at, err := time.Parse(time.RFC3339, row[3])
        if err != nil { continue }
        kind := domain.EventKind(row[0])
        if kind != domain.KindCommit && kind != domain.KindPullRequest { continue }
        out = append(out, domain.RawRecord{
            Kind:    kind,
            ID:      row[1],
            Author:  row[2],
            At:      at,
            Message: row[4],
        })
    }
    return out, nil
}

// WriteReportsJSON writes reports the way the service renders them over
// HTTP, indented for direct human consumption.
func WriteReportsJSON(path string, reports []domain.Report) error {
    b, err := json.MarshalIndent(reports, "", "    ")
    if err != nil { return err }
    return os.WriteFile(path, b, 0o644)
}
