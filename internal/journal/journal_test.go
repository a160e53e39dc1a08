package journal_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zephyrtronium/calc/internal/journal"
)

func open(t *testing.T) *journal.Journal {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(context.Background(), "sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := open(t)
	entries := []struct{ kind, input, result string }{
		{journal.KindEval, "2 + 3*4", "14"},
		{journal.KindAssign, "a", "3"},
		{journal.KindConvert, "c_to_f 100", "212"},
	}
	for _, e := range entries {
		if err := j.Append(ctx, e.kind, e.input, e.result); err != nil {
			t.Fatal(err)
		}
	}
	r, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != len(entries) {
		t.Fatalf("wrong number of records: want %d, got %d", len(entries), len(r))
	}
	for i, e := range entries {
		if r[i].Kind != e.kind || r[i].Input != e.input || r[i].Result != e.result {
			t.Errorf("record %d: want %v, got %+v", i, e, r[i])
		}
		if r[i].At.IsZero() {
			t.Errorf("record %d has no time", i)
		}
	}
	if !(r[0].ID < r[1].ID && r[1].ID < r[2].ID) {
		t.Errorf("records not oldest first: %+v", r)
	}
}

func TestRecentLimit(t *testing.T) {
	ctx := context.Background()
	j := open(t)
	for _, s := range []string{"1", "2", "3", "4", "5"} {
		if err := j.Append(ctx, journal.KindEval, s, s); err != nil {
			t.Fatal(err)
		}
	}
	r, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != 2 || r[0].Input != "4" || r[1].Input != "5" {
		t.Errorf("want the newest two records oldest first, got %+v", r)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(ctx, "sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Append(ctx, journal.KindEval, "1/4", "0.25"); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	j, err = journal.Open(ctx, "sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	r, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != 1 || r[0].Result != "0.25" {
		t.Errorf("record lost across reopen: %+v", r)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := journal.Open(context.Background(), "oracle", "scott/tiger")
	if err == nil {
		t.Error("no error for unsupported driver")
	}
}
