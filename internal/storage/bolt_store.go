// Package storage keeps the history of finished runs in a bbolt file.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const (
	BucketRuns = "runs"
)

type Store struct {
	db *bbolt.DB
}

// DefaultPath is $HOME/.chainq/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}
	return filepath.Join(home, ".chainq", "history.db"), nil
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create history directory")
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init history")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(run RunSummary) error {
	if run.ID == "" {
		return errors.New("run summary without id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		data, err := json.Marshal(run)
		if err != nil {
			return err
		}

		return b.Put([]byte(run.ID), data)
	})
}

// List returns every stored run, newest first. Undecodable entries are skipped.
func (s *Store) List() ([]RunSummary, error) {
	var runs []RunSummary

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketRuns)).ForEach(func(_, v []byte) error {
			var run RunSummary
			if err := json.Unmarshal(v, &run); err == nil {
				runs = append(runs, run)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Start.After(runs[j].Start) })
	return runs, nil
}

func (s *Store) Get(id string) (*RunSummary, error) {
	var run RunSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if v == nil {
			return errors.Errorf("run %s not found", id)
		}
		return json.Unmarshal(v, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}
