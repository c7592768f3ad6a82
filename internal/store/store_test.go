package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/johndauphine/plasticc-ingest/internal/config"
	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/typemap"
)

var testTable = schema.Table{
	Name: "observations",
	Columns: []schema.Column{
		{Name: "object_id", Type: schema.TypeString},
		{Name: "time", Type: schema.TypeFloat},
		{Name: "detected", Type: schema.TypeInt},
	},
	Indexed: []string{"object_id"},
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "plasticc_test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rowsFor(ids ...string) [][]any {
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{id, float64(i), int64(i % 2)}
	}
	return rows
}

func selectIDs(t *testing.T, s *SQLite, table string) []string {
	t.Helper()
	rows, err := s.db.Query("SELECT object_id FROM " + quoteIdent(table) + " ORDER BY rowid")
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	return ids
}

func tableRows(t *testing.T, s Store) map[string]int64 {
	t.Helper()
	infos, err := s.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error: %v", err)
	}
	m := make(map[string]int64, len(infos))
	for _, ti := range infos {
		m[ti.Name] = ti.Rows
	}
	return m
}

func TestSQLiteOverwriteReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.WriteTable(ctx, testTable, rowsFor("a", "b", "c"), ModeOverwrite); err != nil {
		t.Fatalf("first overwrite: %v", err)
	}
	if err := s.WriteTable(ctx, testTable, rowsFor("x"), ModeOverwrite); err != nil {
		t.Fatalf("second overwrite: %v", err)
	}

	got := selectIDs(t, s, "observations")
	if strings.Join(got, ",") != "x" {
		t.Errorf("rows after overwrite = %v, want [x]", got)
	}
}

func TestSQLiteAppendCreatesAndAccumulates(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.WriteTable(ctx, testTable, rowsFor("a", "b"), ModeAppend); err != nil {
		t.Fatalf("append to missing table: %v", err)
	}
	if err := s.WriteTable(ctx, testTable, rowsFor("c"), ModeAppend); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if err := s.WriteTable(ctx, testTable, nil, ModeAppend); err != nil {
		t.Fatalf("empty append: %v", err)
	}

	got := selectIDs(t, s, "observations")
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("rows after appends = %v, want [a b c]", got)
	}
}

func TestSQLiteResetDropsEverything(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	other := testTable
	other.Name = "stale"
	for _, tbl := range []schema.Table{testTable, other} {
		if err := s.WriteTable(ctx, tbl, rowsFor("a"), ModeOverwrite); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateIndexes(ctx, testTable); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if got := tableRows(t, s); len(got) != 0 {
		t.Errorf("tables after Reset = %v, want none", got)
	}

	// Append after reset starts from empty.
	if err := s.WriteTable(ctx, testTable, rowsFor("z"), ModeAppend); err != nil {
		t.Fatal(err)
	}
	if got := tableRows(t, s); got["observations"] != 1 {
		t.Errorf("rows = %v, want observations:1", got)
	}
}

func TestSQLiteTypesAndNulls(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	tbl := schema.Table{
		Name: "metadata",
		Columns: []schema.Column{
			{Name: "object_id", Type: schema.TypeString},
			{Name: "class", Type: schema.TypeInt},
			{Name: "galactic", Type: schema.TypeBool},
			{Name: "host_specz", Type: schema.TypeFloat},
		},
		Key: "object_id",
	}
	rows := [][]any{
		{"plasticc_000000615", int64(92), true, nil},
		{"plasticc_000000713", int64(88), false, 1.8181},
	}
	if err := s.WriteTable(ctx, tbl, rows, ModeOverwrite); err != nil {
		t.Fatalf("WriteTable() error: %v", err)
	}

	var (
		class    int64
		galactic bool
		specz    sql.NullFloat64
	)
	err := s.db.QueryRow(`SELECT class, galactic, host_specz FROM metadata WHERE object_id = ?`,
		"plasticc_000000615").Scan(&class, &galactic, &specz)
	if err != nil {
		t.Fatal(err)
	}
	if class != 92 || !galactic || specz.Valid {
		t.Errorf("got class=%d galactic=%v specz=%v, want 92 true NULL", class, galactic, specz)
	}

	err = s.db.QueryRow(`SELECT galactic, host_specz FROM metadata WHERE object_id = ?`,
		"plasticc_000000713").Scan(&galactic, &specz)
	if err != nil {
		t.Fatal(err)
	}
	if galactic || !specz.Valid || specz.Float64 != 1.8181 {
		t.Errorf("got galactic=%v specz=%v, want false 1.8181", galactic, specz)
	}
}

func TestSQLiteKeyRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	tbl := testTable
	tbl.Key = "object_id"
	err := s.WriteTable(ctx, tbl, rowsFor("a", "a"), ModeOverwrite)
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
	if !strings.Contains(err.Error(), "writing observations") {
		t.Errorf("error should name the table: %v", err)
	}
	// The failed call must not leave partial rows.
	if got := tableRows(t, s); got["observations"] != 0 {
		t.Errorf("rows after failed write = %v", got)
	}
}

func TestSQLiteRowWidthMismatch(t *testing.T) {
	s := openTestSQLite(t)
	err := s.WriteTable(context.Background(), testTable, [][]any{{"a", 1.0}}, ModeAppend)
	if err == nil || !strings.Contains(err.Error(), "row 0 has 2 values") {
		t.Errorf("expected width error, got %v", err)
	}
}

func TestSQLiteTablesCounts(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	meta := testTable
	meta.Name = "metadata"
	if err := s.WriteTable(ctx, meta, rowsFor("a", "b"), ModeOverwrite); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.WriteTable(ctx, testTable, rowsFor("a", "a", "b"), ModeAppend); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateIndexes(ctx, testTable); err != nil {
		t.Fatalf("CreateIndexes() error: %v", err)
	}

	infos, err := s.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []TableInfo{{"metadata", 2}, {"observations", 9}}
	if len(infos) != len(want) {
		t.Fatalf("Tables() = %v, want %v", infos, want)
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("Tables()[%d] = %v, want %v", i, infos[i], want[i])
		}
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "plasticc_train.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteTable(ctx, testTable, rowsFor("a"), ModeAppend); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got := tableRows(t, s); got["observations"] != 1 {
		t.Errorf("rows after reopen = %v", got)
	}
}

func TestOpenUsesConfiguredBackend(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	s, err := Open(context.Background(), cfg, "train")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()
	sq, ok := s.(*SQLite)
	if !ok {
		t.Fatalf("Open() returned %T, want *SQLite", s)
	}
	if sq.Path() != cfg.OutputPath("train") {
		t.Errorf("Path() = %q, want %q", sq.Path(), cfg.OutputPath("train"))
	}

	cfg.Store.Type = "duckdb"
	if _, err := Open(context.Background(), cfg, "train"); err == nil {
		t.Error("expected error for unknown store type")
	}
}

func TestGenerateDDL(t *testing.T) {
	tbl := schema.Table{
		Name: "metadata",
		Columns: []schema.Column{
			{Name: "object_id", Type: schema.TypeString},
			{Name: "galactic", Type: schema.TypeBool},
		},
		Key: "object_id",
	}

	got := generateDDL(qualifyTable("plasticc_train", "metadata"), tbl, typemap.Postgres, true)
	want := "CREATE TABLE IF NOT EXISTS \"plasticc_train\".\"metadata\" (\n" +
		"    \"object_id\" text PRIMARY KEY,\n" +
		"    \"galactic\" boolean\n)"
	if got != want {
		t.Errorf("generateDDL() =\n%s\nwant\n%s", got, want)
	}

	got = generateDDL(quoteIdent("metadata"), tbl, typemap.SQLite, false)
	want = "CREATE TABLE \"metadata\" (\n" +
		"    \"object_id\" TEXT PRIMARY KEY,\n" +
		"    \"galactic\" BOOLEAN\n)"
	if got != want {
		t.Errorf("generateDDL() =\n%s\nwant\n%s", got, want)
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"metadata", `"metadata"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if got := qualifyTable("", "t"); got != `"t"` {
		t.Errorf("qualifyTable without schema = %s", got)
	}
}

func TestModeString(t *testing.T) {
	if ModeOverwrite.String() != "overwrite" || ModeAppend.String() != "append" {
		t.Errorf("unexpected mode names: %s %s", ModeOverwrite, ModeAppend)
	}
}
