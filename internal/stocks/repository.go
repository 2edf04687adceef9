package stocks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidTableName reports whether name is a bare SQL identifier that can be
// interpolated into the fixed query.
func ValidTableName(name string) bool {
	return tableNameRegex.MatchString(name)
}

// Repository reads the whole stock table.
type Repository interface {
	ListAll(ctx context.Context) ([]StockRecord, error)
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLRepository runs the stock query through database/sql (MySQL).
type SQLRepository struct {
	db    sqlQuerier
	query string
}

// NewSQLRepository builds a repository over an open *sql.DB.
func NewSQLRepository(db *sql.DB, table string) (*SQLRepository, error) {
	return newSQLRepository(db, table)
}

func newSQLRepository(db sqlQuerier, table string) (*SQLRepository, error) {
	if !ValidTableName(table) {
		return nil, fmt.Errorf("stocks: invalid table name %q", table)
	}
	return &SQLRepository{db: db, query: "SELECT * FROM `" + table + "`"}, nil
}

// ListAll executes SELECT * against the configured table.
func (r *SQLRepository) ListAll(ctx context.Context) ([]StockRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(types))
	numeric := make([]bool, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		numeric[i] = isNumericType(ct.DatabaseTypeName())
	}
	builder, err := newRowBuilder(names, numeric)
	if err != nil {
		return nil, err
	}

	records := make([]StockRecord, 0)
	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec, err := builder.build(values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRepository runs the stock query through a pgx pool.
type PGRepository struct {
	db    pgQuerier
	query string
}

// NewPGRepository builds a repository over a pgx pool or connection.
func NewPGRepository(db pgQuerier, table string) (*PGRepository, error) {
	if !ValidTableName(table) {
		return nil, fmt.Errorf("stocks: invalid table name %q", table)
	}
	return &PGRepository{db: db, query: `SELECT * FROM "` + table + `"`}, nil
}

// ListAll executes SELECT * against the configured table.
func (r *PGRepository) ListAll(ctx context.Context) ([]StockRecord, error) {
	rows, err := r.db.Query(ctx, r.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
	}
	builder, err := newRowBuilder(names, make([]bool, len(names)))
	if err != nil {
		return nil, err
	}

	records := make([]StockRecord, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec, err := builder.build(values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// rowBuilder maps positional column values onto a StockRecord.
type rowBuilder struct {
	names   []string
	numeric []bool
	date    int
	stock1  int
	stock3  int
}

func newRowBuilder(names []string, numeric []bool) (*rowBuilder, error) {
	b := &rowBuilder{names: names, numeric: numeric, date: -1, stock1: -1, stock3: -1}
	for i, name := range names {
		switch strings.ToLower(name) {
		case ColumnDate:
			b.date = i
		case ColumnStock1:
			b.stock1 = i
		case ColumnStock3:
			b.stock3 = i
		}
	}
	var missing []string
	if b.date < 0 {
		missing = append(missing, ColumnDate)
	}
	if b.stock1 < 0 {
		missing = append(missing, ColumnStock1)
	}
	if b.stock3 < 0 {
		missing = append(missing, ColumnStock3)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing column(s) %s", ErrMalformedTable, strings.Join(missing, ", "))
	}
	return b, nil
}

func (b *rowBuilder) build(values []any) (StockRecord, error) {
	var rec StockRecord
	var err error
	rec.Date = dateString(values[b.date])
	if rec.Stock1, err = priceValue(values[b.stock1]); err != nil {
		return StockRecord{}, fmt.Errorf("stocks: column %s: %w", ColumnStock1, err)
	}
	if rec.Stock3, err = priceValue(values[b.stock3]); err != nil {
		return StockRecord{}, fmt.Errorf("stocks: column %s: %w", ColumnStock3, err)
	}
	for i, name := range b.names {
		if i == b.date || i == b.stock1 || i == b.stock3 {
			continue
		}
		rec.Extra = append(rec.Extra, Column{Name: name, Value: extraValue(values[i], b.numeric[i])})
	}
	return rec, nil
}

var numericTypes = map[string]struct{}{
	"INT": {}, "INTEGER": {}, "TINYINT": {}, "SMALLINT": {}, "MEDIUMINT": {}, "BIGINT": {},
	"DECIMAL": {}, "NUMERIC": {}, "FLOAT": {}, "DOUBLE": {}, "REAL": {},
	"INT2": {}, "INT4": {}, "INT8": {}, "FLOAT4": {}, "FLOAT8": {},
}

func isNumericType(name string) bool {
	name = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "UNSIGNED ")
	_, ok := numericTypes[name]
	return ok
}

func dateString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format(DateLayout)
	case pgtype.Date:
		if !val.Valid {
			return ""
		}
		return val.Time.Format(DateLayout)
	case []byte:
		return trimDate(string(val))
	case string:
		return trimDate(val)
	default:
		return fmt.Sprint(val)
	}
}

// trimDate drops a midnight time component such as "2024-01-02 00:00:00".
func trimDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if _, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil && (s[len(DateLayout)] == ' ' || s[len(DateLayout)] == 'T') {
			if t, err := ParseDate(s); err == nil {
				return t.Format(DateLayout)
			}
			return s[:len(DateLayout)]
		}
	}
	return s
}

// errNonFinite rejects prices that JSON cannot carry.
var errNonFinite = errors.New("non-finite price")

func priceValue(v any) (null.Float, error) {
	switch val := v.(type) {
	case nil:
		return null.Float{}, nil
	case float64:
		return finitePrice(val)
	case float32:
		return finitePrice(float64(val))
	case int64:
		return null.FloatFrom(float64(val)), nil
	case int32:
		return null.FloatFrom(float64(val)), nil
	case int16:
		return null.FloatFrom(float64(val)), nil
	case int:
		return null.FloatFrom(float64(val)), nil
	case uint64:
		return null.FloatFrom(float64(val)), nil
	case []byte:
		return parsePrice(string(val))
	case string:
		return parsePrice(val)
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil {
			return null.Float{}, err
		}
		if !f.Valid {
			return null.Float{}, nil
		}
		return finitePrice(f.Float64)
	default:
		return null.Float{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func parsePrice(s string) (null.Float, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return null.Float{}, err
	}
	return finitePrice(f)
}

func finitePrice(f float64) (null.Float, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}, fmt.Errorf("%w: %v", errNonFinite, f)
	}
	return null.FloatFrom(f), nil
}

func extraValue(v any, numeric bool) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(val)
		if numeric && isJSONNumber(s) {
			return json.Number(s)
		}
		return s
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time.Format(DateLayout)
	default:
		return val
	}
}

func isJSONNumber(s string) bool {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	return json.Valid([]byte(s))
}
