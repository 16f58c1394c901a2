package runs

import (
	"testing"

	dbpkg "github.com/dtnitsch/wiki-ngrams/pkg/db"
	"github.com/urfave/cli/v2"
)

func resolveRunID(t *testing.T, database *dbpkg.DB, args ...string) (int64, error) {
	t.Helper()
	var id int64
	var resolveErr error
	app := &cli.App{
		Name: "test",
		Action: func(c *cli.Context) error {
			id, resolveErr = GetRunIDOrLatest(c, database)
			return nil
		},
	}
	if err := app.Run(append([]string{"test"}, args...)); err != nil {
		t.Fatalf("app.Run() error = %v", err)
	}
	return id, resolveErr
}

func TestGetRunIDOrLatest(t *testing.T) {
	database, err := dbpkg.Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	if _, err := resolveRunID(t, database); err == nil {
		t.Error("expected an error with no runs recorded")
	}

	var last int64
	for i := 0; i < 3; i++ {
		if last, err = database.CreateRun("/in", "/out", "top_k: 10\n"); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	id, err := resolveRunID(t, database)
	if err != nil || id != last {
		t.Errorf("latest = %d, %v; want %d", id, err, last)
	}
	id, err = resolveRunID(t, database, "1")
	if err != nil || id != 1 {
		t.Errorf("explicit = %d, %v; want 1", id, err)
	}
	if _, err := resolveRunID(t, database, "abc"); err == nil {
		t.Error("expected an error for a non-numeric id")
	}
}
