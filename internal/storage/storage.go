// Package storage persists term, vote and log state to disk so a node can
// recover after a restart. Term/vote and log entries are each kept in their
// own file, serialized with the wire package.
package storage

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mossraft/raftcore/internal/wire"
	"github.com/mossraft/raftcore/raft"
)

// Store is a file-backed persistence layer for a single node's term, vote
// and log. It does not serialize concurrent access; callers invoke it only
// from within the single-threaded host event loop.
type Store struct {
	termFile string
	logFile  string
}

// New returns a Store writing to the given term and log file paths. The
// parent directory of each must already exist.
func New(termFile, logFile string) *Store {
	return &Store{termFile: termFile, logFile: logFile}
}

// WriteTerm persists the current term and vote.
func (s *Store) WriteTerm(term raft.Term, votedFor *raft.NodeID) error {
	rec := &wire.TermRecord{Term: term, VotedFor: votedFor}
	out := wire.MarshalTermRecord(rec)

	if _, err := os.Stat(filepath.Dir(s.termFile)); err != nil {
		log.Error().Err(err).Str("file", s.termFile).Msg("term directory missing")
		return fmt.Errorf("storage: term directory missing: %w", err)
	}
	if err := writeFileSync(s.termFile, out); err != nil {
		log.Error().Err(err).Str("file", s.termFile).Msg("failed to write term file")
		return fmt.Errorf("storage: write term file: %w", err)
	}
	return nil
}

// writeFileSync replaces path's contents with data and fsyncs it before
// returning.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadTerm returns the persisted term and vote, or (0, nil) if no term file
// exists yet.
func (s *Store) ReadTerm() (raft.Term, *raft.NodeID) {
	if _, err := os.Stat(s.termFile); err != nil {
		return 0, nil
	}
	raw, err := ioutil.ReadFile(s.termFile)
	if err != nil {
		log.Warn().Err(err).Str("file", s.termFile).Msg("failed to read term file")
		return 0, nil
	}
	rec, err := wire.UnmarshalTermRecord(raw)
	if err != nil {
		log.Warn().Err(err).Str("file", s.termFile).Msg("failed to unmarshal term file")
		return 0, nil
	}
	return rec.Term, rec.VotedFor
}

// WriteLog persists the full log, base index included.
func (s *Store) WriteLog(baseIndex raft.Index, entries []raft.Entry) error {
	out := wire.MarshalLogStore(&wire.LogStore{BaseIndex: baseIndex, Entries: entries})
	if err := writeFileSync(s.logFile, out); err != nil {
		log.Error().Err(err).Str("file", s.logFile).Msg("failed to write log file")
		return fmt.Errorf("storage: write log file: %w", err)
	}
	return nil
}

// ReadLog returns the persisted base index and entries, or (1, nil) if no
// log file exists yet.
func (s *Store) ReadLog() (raft.Index, []raft.Entry) {
	if _, err := os.Stat(s.logFile); err != nil {
		return 1, nil
	}
	raw, err := ioutil.ReadFile(s.logFile)
	if err != nil {
		log.Warn().Err(err).Str("file", s.logFile).Msg("failed to read log file")
		return 1, nil
	}
	store, err := wire.UnmarshalLogStore(raw)
	if err != nil {
		log.Error().Err(err).Str("file", s.logFile).Msg("failed to unmarshal log file, starting from an empty log")
		return 1, nil
	}
	base := store.BaseIndex
	if base == 0 {
		base = 1
	}
	return base, store.Entries
}
