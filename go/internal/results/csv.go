package results

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CSVHeader is the column layout shared by the CSV sink and the exporter.
var CSVHeader = []string{
	"session_id", "participant", "experiment", "trial_index", "trial_id",
	"stimulus", "response", "rt_ms", "properties", "started_at", "ended_at",
}

// CSVRow formats a record in CSVHeader order. Missing responses and
// reaction times are empty cells.
func CSVRow(rec Record) ([]string, error) {
	r := rec.Result
	response, rt := "", ""
	if r.Response != nil {
		response = strconv.Itoa(*r.Response)
	}
	if r.RT != nil {
		rt = strconv.FormatFloat(*r.RT, 'f', -1, 64)
	}
	props := ""
	if r.Properties != nil {
		data, err := json.Marshal(r.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to encode properties: %w", err)
		}
		props = string(data)
	}
	return []string{
		rec.SessionID.String(),
		rec.Participant,
		rec.Experiment,
		strconv.Itoa(rec.TrialIndex),
		r.TrialID.String(),
		r.Stimulus,
		response,
		rt,
		props,
		r.StartedAt.Format(time.RFC3339Nano),
		r.EndedAt.Format(time.RFC3339Nano),
	}, nil
}

// WriteCSV writes a header and one row per record.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range recs {
		row, err := CSVRow(rec)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSink appends records to one file per session in a directory.
type CSVSink struct {
	dir string

	mu    sync.Mutex
	files map[uuid.UUID]*csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates dir if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &CSVSink{dir: dir, files: make(map[uuid.UUID]*csvFile)}, nil
}

// Path returns the file a session's records are written to.
func (s *CSVSink) Path(sessionID uuid.UUID) string {
	return filepath.Join(s.dir, sessionID.String()+".csv")
}

// Save appends rec and flushes, so a crash loses at most the current row.
func (s *CSVSink) Save(_ context.Context, rec Record) error {
	row, err := CSVRow(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cf, ok := s.files[rec.SessionID]
	if !ok {
		cf, err = s.open(rec.SessionID)
		if err != nil {
			return err
		}
		s.files[rec.SessionID] = cf
	}
	if err := cf.w.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	cf.w.Flush()
	return cf.w.Error()
}

func (s *CSVSink) open(sessionID uuid.UUID) (*csvFile, error) {
	path := s.Path(sessionID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := w.Write(CSVHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	log.Debug().Str("path", path).Msg("opened results file")
	return &csvFile{f: f, w: w}, nil
}

// CloseSession closes the session's file, if open.
func (s *CSVSink) CloseSession(sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, ok := s.files[sessionID]
	if !ok {
		return nil
	}
	delete(s.files, sessionID)
	cf.w.Flush()
	if err := cf.w.Error(); err != nil {
		cf.f.Close()
		return fmt.Errorf("failed to flush results file: %w", err)
	}
	return cf.f.Close()
}

// OpenSessions returns the number of session files currently open.
func (s *CSVSink) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Close closes every open file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.CloseSession(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
