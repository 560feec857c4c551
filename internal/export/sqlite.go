package export

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/defineEditor/sas7bdat"
)

// ColumnsTable is the table listing the columns of every exported
// dataset.
const ColumnsTable = "sas7bdat_columns"

const columnsSchema = `CREATE TABLE IF NOT EXISTS ` + ColumnsTable + ` (
	table_name TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	label TEXT,
	data_type TEXT NOT NULL,
	length INTEGER,
	display_format TEXT,
	PRIMARY KEY (table_name, position)
)`

// SQLiteSink writes the rows to a table of a SQLite database in a single
// transaction.  Numeric columns are REAL and the others TEXT; nulls are
// NULL.  An existing table of the same name is replaced.
type SQLiteSink struct {
	path  string
	table string
	db    *sql.DB
	tx    *sql.Tx
	stmt  *sql.Stmt
	args  []any
}

// NewSQLite returns a sink writing to table in the database at path.  An
// empty table uses the dataset name.
func NewSQLite(path, table string) *SQLiteSink {
	return &SQLiteSink{path: path, table: table}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (s *SQLiteSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	if s.table == "" {
		s.table = desc.Name
	}
	if s.table == "" {
		return fmt.Errorf("no table name for %s", desc.FilePath)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s.db = db

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx

	defs := make([]string, len(desc.Columns))
	marks := make([]string, len(desc.Columns))
	for i, c := range desc.Columns {
		typ := "TEXT"
		if c.DataType.IsNumeric() {
			typ = "REAL"
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
		marks[i] = "?"
	}

	stmts := []string{
		columnsSchema,
		"DELETE FROM " + ColumnsTable + " WHERE table_name = " + quoteString(s.table),
		"DROP TABLE IF EXISTS " + quoteIdent(s.table),
		"CREATE TABLE " + quoteIdent(s.table) + " (" + strings.Join(defs, ", ") + ")",
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("failed to create table %s: %w", s.table, err)
		}
	}

	for i, c := range desc.Columns {
		_, err := tx.Exec("INSERT INTO "+ColumnsTable+" VALUES (?, ?, ?, ?, ?, ?, ?)",
			s.table, i, c.Name, c.Label, string(c.DataType), nullInt(c.Length), nullString(c.DisplayFormat))
		if err != nil {
			return fmt.Errorf("failed to record column %s: %w", c.Name, err)
		}
	}

	s.stmt, err = tx.Prepare("INSERT INTO " + quoteIdent(s.table) + " VALUES (" + strings.Join(marks, ", ") + ")")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	s.args = make([]any, len(desc.Columns))
	return nil
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLiteSink) WriteRows(rows sas7bdat.RowMatrix) error {
	for _, r := range rows {
		for j, c := range r {
			s.args[j] = c.Value()
		}
		if _, err := s.stmt.Exec(s.args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", s.table, err)
		}
	}
	return nil
}

// Abort rolls the transaction back.  Close then only closes the
// database.
func (s *SQLiteSink) Abort() {
	if s.stmt != nil {
		s.stmt.Close()
		s.stmt = nil
	}
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
}

// Close commits the transaction and closes the database.
func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	var err error
	if s.stmt != nil {
		s.stmt.Close()
	}
	if s.tx != nil {
		err = s.tx.Commit()
		s.tx = nil
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	s.db = nil
	return err
}
