// Package records persists study submissions: one shared CSV log per record type, JSON
// documents under each participant's namespace, and image assets.
package records

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/lockx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

var ErrInvalidParticipant = errors.New("records: invalid participant namespace")

type Store struct {
	log   *logger.Logger
	blob  blob.Store
	locks lockx.Locker

	mu       sync.Mutex
	verified map[RecordType]bool
}

func New(log *logger.Logger, b blob.Store, locks lockx.Locker) *Store {
	if locks == nil {
		locks = lockx.NewLocal()
	}
	return &Store{
		log:      log.With("service", "RecordStore"),
		blob:     b,
		locks:    locks,
		verified: map[RecordType]bool{},
	}
}

func (s *Store) Describe() blob.Location { return s.blob.Describe() }

func (s *Store) isVerified(rt RecordType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified[rt]
}

func (s *Store) setVerified(rt RecordType, v bool) {
	s.mu.Lock()
	s.verified[rt] = v
	s.mu.Unlock()
}

// AppendRow appends one row to the log for rt, creating it with the declared header
// when absent. Appenders to one log are serialized.
func (s *Store) AppendRow(ctx context.Context, rt RecordType, row Row) error {
	cols, err := Columns(rt)
	if err != nil {
		return err
	}
	values, err := conform(cols, row)
	if err != nil {
		return fmt.Errorf("%s: %w", rt, err)
	}

	key := logKey(rt)
	unlock, err := s.locks.Lock(ctx, "log:"+key)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if !s.isVerified(rt) {
		exists, err := s.checkHeader(ctx, rt, cols)
		if err != nil {
			return err
		}
		if !exists {
			_ = w.Write(cols)
		}
	}
	_ = w.Write(values)
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode %s row: %w", rt, err)
	}

	if err := s.blob.Append(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	s.setVerified(rt, true)
	return nil
}

// checkHeader reports whether the log exists, failing when its header differs from cols.
func (s *Store) checkHeader(ctx context.Context, rt RecordType, cols []string) (bool, error) {
	rc, _, err := s.blob.Open(ctx, logKey(rt))
	if errors.Is(err, blob.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", logKey(rt), err)
	}
	defer rc.Close()

	header, err := csv.NewReader(rc).Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s header: %w", logKey(rt), err)
	}
	if !sameHeader(cols, header) {
		s.log.Error("Log header does not match declared schema",
			"log", logKey(rt),
			"declared", strings.Join(cols, ","),
			"found", strings.Join(header, ","),
		)
		return false, fmt.Errorf("%s: %w: header %q", logKey(rt), ErrSchemaMismatch, strings.Join(header, ","))
	}
	return true, nil
}

// RewriteRows loads every row of rt, passes each to fn, and when fn changed any row
// replaces the log atomically. It returns the number of changed rows.
func (s *Store) RewriteRows(ctx context.Context, rt RecordType, fn func(Row) bool) (int, error) {
	cols, err := Columns(rt)
	if err != nil {
		return 0, err
	}
	key := logKey(rt)
	unlock, err := s.locks.Lock(ctx, "log:"+key)
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	raw, err := s.blob.Read(ctx, key)
	if errors.Is(err, blob.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	recs, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if !sameHeader(cols, recs[0]) {
		return 0, fmt.Errorf("%s: %w", key, ErrSchemaMismatch)
	}

	changed := 0
	for i := 1; i < len(recs); i++ {
		if len(recs[i]) != len(cols) {
			return 0, fmt.Errorf("%s line %d: %w", key, i+1, ErrSchemaMismatch)
		}
		row := make(Row, len(cols))
		for j, c := range cols {
			row[c] = recs[i][j]
		}
		if !fn(row) {
			continue
		}
		values, err := conform(cols, row)
		if err != nil {
			return 0, fmt.Errorf("%s line %d: %w", key, i+1, err)
		}
		recs[i] = values
		changed++
	}
	if changed == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(recs); err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.blob.Write(ctx, key, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("replace %s: %w", key, err)
	}
	return changed, nil
}

// ReadRows returns every data row of rt; a missing log yields no rows.
func (s *Store) ReadRows(ctx context.Context, rt RecordType) ([]Row, error) {
	cols, err := Columns(rt)
	if err != nil {
		return nil, err
	}
	raw, err := s.blob.Read(ctx, logKey(rt))
	if errors.Is(err, blob.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", logKey(rt), err)
	}
	recs, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", logKey(rt), err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	if !sameHeader(cols, recs[0]) {
		return nil, fmt.Errorf("%s: %w", logKey(rt), ErrSchemaMismatch)
	}
	out := make([]Row, 0, len(recs)-1)
	for _, rec := range recs[1:] {
		row := make(Row, len(cols))
		for j, c := range cols {
			row[c] = rec[j]
		}
		out = append(out, row)
	}
	return out, nil
}

func participantKey(participant, name string) (string, error) {
	p := strings.TrimSpace(participant)
	if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidParticipant, participant)
	}
	return blob.CleanKey(p + "/" + name)
}

// WithParticipantLock runs fn while holding the participant's lock. Every
// read-modify-write of a participant document goes through here.
func (s *Store) WithParticipantLock(ctx context.Context, participant string, fn func(ctx context.Context) error) error {
	if _, err := participantKey(participant, "lock"); err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, "participant:"+participant)
	if err != nil {
		return fmt.Errorf("lock participant: %w", err)
	}
	defer unlock()
	return fn(ctx)
}

// WriteDocument replaces the named JSON document atomically.
func (s *Store) WriteDocument(ctx context.Context, participant, name string, payload any) error {
	key, err := participantKey(participant, name)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.blob.Write(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadDocument decodes the named document into out. A document that was never written
// is reported as found=false with a nil error.
func (s *Store) ReadDocument(ctx context.Context, participant, name string, out any) (bool, error) {
	key, err := participantKey(participant, name)
	if err != nil {
		return false, err
	}
	b, err := s.blob.Read(ctx, key)
	if errors.Is(err, blob.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
