// Package store persists the roster and attendance tables in a single Excel
// workbook, one sheet per table. Every mutation rewrites the workbook as a
// whole through a temp-file-then-rename replace, so readers never observe a
// half-written file and a failed save leaves the previous state untouched.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Table is an ordered list of rows under a header schema, the unit of
// persistence. Rows are padded to the header width on load.
type Table struct {
	Header []string
	Rows   [][]string
}

// Empty reports whether the table has neither schema nor rows.
func (t *Table) Empty() bool {
	return len(t.Header) == 0 && len(t.Rows) == 0
}

// ColumnIndex returns the index of the named header column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func (t *Table) normalize() {
	for i, row := range t.Rows {
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows[i] = row
	}
}

// Store is the durable whole-table store shared by every component. A single
// RWMutex serialises full load-modify-save cycles; see Update.
type Store struct {
	path string
	mu   sync.RWMutex
}

// Open binds a store to a workbook path. The file is created lazily on the
// first Update; an existing file is read once to fail fast on corruption.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: workbook path is required")
	}
	s := &Store{path: path}
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the workbook location.
func (s *Store) Path() string {
	return s.path
}

// Tx is a snapshot of the whole workbook. Mutations made through Put are
// written back atomically when the enclosing Update returns nil.
type Tx struct {
	tables   map[string]*Table
	order    []string
	writable bool
	dirty    bool
}

// Table returns the named table, or a well-defined empty table if it does not
// exist yet so first-use bootstrapping needs no special case. Mutations are
// only persisted after Put.
func (tx *Tx) Table(name string) *Table {
	if t, ok := tx.tables[name]; ok {
		return t
	}
	return &Table{}
}

// Has reports whether the named table exists in the workbook.
func (tx *Tx) Has(name string) bool {
	_, ok := tx.tables[name]
	return ok
}

// Put stages a table for the commit, appending new names in insertion order.
func (tx *Tx) Put(name string, t *Table) {
	if !tx.writable {
		panic("store: Put inside a read-only transaction")
	}
	if _, ok := tx.tables[name]; !ok {
		tx.order = append(tx.order, name)
	}
	tx.tables[name] = t
	tx.dirty = true
}

// Names lists the tables in workbook order.
func (tx *Tx) Names() []string {
	out := make([]string, len(tx.order))
	copy(out, tx.order)
	return out
}

// View runs fn against a read snapshot. Views may run concurrently with each
// other but never interleave with an Update.
func (s *Store) View(fn func(*Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, err := s.read()
	if err != nil {
		return err
	}
	return fn(tx)
}

// Update runs fn against a writable snapshot, holding the write lock for the
// whole load-modify-save cycle. Two concurrent writers therefore never load
// stale state: the second waits and sees the first writer's save.
func (s *Store) Update(fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.read()
	if err != nil {
		return err
	}
	tx.writable = true
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	return s.write(tx)
}

func (s *Store) read() (*Tx, error) {
	tx := &Tx{tables: make(map[string]*Table)}
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return tx, nil
		}
		return nil, fmt.Errorf("store: stat %s: %w", s.path, err)
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", s.path, err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("store: read sheet %s: %w", sheet, err)
		}
		t := &Table{}
		if len(rows) > 0 {
			t.Header = rows[0]
			t.Rows = rows[1:]
		}
		t.normalize()
		tx.tables[sheet] = t
		tx.order = append(tx.order, sheet)
	}
	return tx, nil
}

func (s *Store) write(tx *Tx) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	usesDefault := false
	for _, name := range tx.order {
		if name == defaultSheet {
			usesDefault = true
		}
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("store: create sheet %s: %w", name, err)
		}
		t := tx.tables[name]
		if err := writeRow(f, name, 1, t.Header); err != nil {
			return err
		}
		for i, row := range t.Rows {
			if err := writeRow(f, name, i+2, row); err != nil {
				return err
			}
		}
	}
	if len(tx.order) > 0 && !usesDefault {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("store: drop default sheet: %w", err)
		}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}
	// SaveAs validates the extension, so the temp name must still end in .xlsx.
	tmp := s.path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("store: save %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("store: cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("store: write row %d of %s: %w", rowNum, sheet, err)
	}
	return nil
}
