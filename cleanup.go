// Transactional Cleanup tracks what an extraction run has created on disk
// so a failure partway through — a bad hash, a cancelled context, an I/O
// error on partition 4 of 7 — doesn't leave a half-written output tree
// masquerading as a complete one (§4.9). The teacher never needed this: its
// single ExtractBootFromPayload call either produces one boot.img or it
// doesn't run at all. Once the engine writes N partitions in one pass, a
// mid-run failure needs the same all-or-nothing guarantee restated as an
// explicit rollback list.
package otaripper

import (
	"os"
	"sync"
)

// Transaction records output files and a possibly-created output directory
// across one Extract call. Commit marks the record done so Rollback is a
// no-op; without a Commit, Rollback removes everything recorded.
type Transaction struct {
	mu        sync.Mutex
	files     []string
	dir       string
	dirOwned  bool
	committed bool
}

// NewTransaction starts empty.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// TrackDir records dir as the output directory, and whether this run is
// the one that created it (per EnsureOutputDir's created flag) — a
// pre-existing directory is never removed on rollback, only files this run
// wrote into it.
func (tx *Transaction) TrackDir(dir string, owned bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.dir = dir
	tx.dirOwned = owned
}

// TrackFile records path as created by this run and eligible for rollback.
func (tx *Transaction) TrackFile(path string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.files = append(tx.files, path)
}

// Commit marks the transaction successful: Rollback becomes a no-op.
func (tx *Transaction) Commit() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.committed = true
}

// Rollback removes every tracked file and, if this run created it, the
// output directory. It's idempotent and safe to call multiple times (a
// panic recovery path and an explicit error path might both reach it).
// Individual removal failures are collected but don't stop the sweep —
// a half-successful rollback is still better than none.
func (tx *Transaction) Rollback() []error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.committed {
		return nil
	}
	var errs []error
	for _, f := range tx.files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	tx.files = nil
	if tx.dirOwned && tx.dir != "" {
		if err := os.Remove(tx.dir); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
		tx.dirOwned = false
	}
	return errs
}
