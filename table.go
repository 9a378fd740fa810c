// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
)

// Table is a fully in-memory tabular artifact: a header row plus data
// rows, all cells as strings. Stages parse the cells they compute on
// and pass the rest through untouched.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of the named column, or a SchemaError if
// the table has no such column.
func (t *Table) Column(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, &SchemaError{Column: name}
}

func newPgzipReader(rdr io.Reader) (*pgzip.Reader, error) {
	return pgzip.NewReader(bufio.NewReaderSize(rdr, 1<<22))
}

// ReadTable parses a complete CSV table. gz indicates the stream is
// gzip-compressed.
func ReadTable(rdr io.Reader, gz bool) (*Table, error) {
	if gz {
		zr, err := newPgzipReader(rdr)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		rdr = zr
	}
	csvr := csv.NewReader(rdr)
	csvr.FieldsPerRecord = -1
	recs, err := csvr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("empty table: no header row")
	}
	return &Table{Columns: recs[0], Rows: recs[1:]}, nil
}

// ReadTableFile loads path, transparently decompressing *.gz.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f, strings.HasSuffix(path, ".gz"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteTable writes the table as CSV. gz selects gzip compression.
func WriteTable(w io.Writer, t *Table, gz bool) error {
	if gz {
		zw := pgzip.NewWriter(w)
		if err := writeCSV(zw, t); err != nil {
			return err
		}
		return zw.Close()
	}
	return writeCSV(w, t)
}

func writeCSV(w io.Writer, t *Table) error {
	bufw := bufio.NewWriter(w)
	csvw := csv.NewWriter(bufw)
	if err := csvw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := csvw.Write(row); err != nil {
			return err
		}
	}
	csvw.Flush()
	if err := csvw.Error(); err != nil {
		return err
	}
	return bufw.Flush()
}

// mkdirFor creates the parent directory of path if needed.
func mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// WriteTableFile writes the table to path (gzip if path ends in .gz),
// creating or truncating it.
func WriteTableFile(path string, t *Table) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	err = WriteTable(f, t, strings.HasSuffix(path, ".gz"))
	if err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
