package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/wiki-ngrams/internal/common"
	"github.com/dtnitsch/wiki-ngrams/models"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of the runs table.
type Run struct {
	RunID        int64
	CreatedAt    time.Time
	FinishedAt   sql.NullTime
	Status       string
	InputDir     string
	OutputFile   string
	ConfigHash   string
	FailedStage  string
	ErrorMessage string
	Stats        models.RunStats
	Duration     time.Duration
}

// CreateRun records the start of a counting run and returns its id.
func (db *DB) CreateRun(inputDir, outputFile, configYAML string) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (status, input_dir, output_file, config_yaml, config_hash)
		VALUES (?, ?, ?, ?, ?)
	`, StatusRunning, inputDir, outputFile, configYAML, common.ContentHash([]byte(configYAML)))
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// FinishRun marks a run succeeded and stores its totals and outputs.
func (db *DB) FinishRun(runID int64, report models.RunReport) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := report.Stats
	res, err := tx.Exec(`
		UPDATE runs
		SET status = ?, finished_at = CURRENT_TIMESTAMP, shards = ?, articles = ?,
		    skipped_articles = ?, tokens = ?, bigrams = ?, distinct_unigrams = ?,
		    distinct_bigrams = ?, spill_files = ?, spill_bytes = ?, merge_steps = ?, duration_ms = ?
		WHERE run_id = ?
	`, StatusSucceeded, s.Shards, s.Articles, s.SkippedArticles, int64(s.Tokens), int64(s.Bigrams),
		s.DistinctUnigrams, s.DistinctBigrams, s.SpillFiles, s.SpillBytes, s.MergeSteps,
		report.Duration.Milliseconds(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}

	for _, out := range report.Outputs {
		if _, err := tx.Exec(`
			INSERT INTO run_outputs (run_id, kind, path, sha256, size_bytes)
			VALUES (?, ?, ?, ?, ?)
		`, runID, out.Kind, out.Path, out.SHA256, out.SizeBytes); err != nil {
			return fmt.Errorf("failed to insert run output: %w", err)
		}
	}

	return tx.Commit()
}

// FailRun marks a run failed with the stage and error that ended it.
func (db *DB) FailRun(runID int64, stage, errorMessage string, duration time.Duration) error {
	_, err := db.Exec(`
		UPDATE runs
		SET status = ?, finished_at = CURRENT_TIMESTAMP, failed_stage = ?, error_message = ?, duration_ms = ?
		WHERE run_id = ?
	`, StatusFailed, stage, errorMessage, duration.Milliseconds(), runID)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// InsertTopNGrams stores a ranked top-k list for one n-gram order.
func (db *DB) InsertTopNGrams(runID int64, order int, recs []models.CountRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_top_ngrams (run_id, ngram_order, rank, first_token, second_token, count, docs)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		if rec.NGram.Order() != order {
			return fmt.Errorf("n-gram %q is not of order %d", rec.NGram.String(), order)
		}
		if _, err := stmt.Exec(runID, order, i+1, rec.NGram.First, rec.NGram.Second, int64(rec.Count), int64(rec.Docs)); err != nil {
			return fmt.Errorf("failed to insert top n-gram: %w", err)
		}
	}
	return tx.Commit()
}

const runColumns = `
	run_id, created_at, finished_at, status, input_dir, output_file, COALESCE(config_hash, ''),
	COALESCE(failed_stage, ''), COALESCE(error_message, ''), shards, articles, skipped_articles,
	tokens, bigrams, distinct_unigrams, distinct_bigrams, spill_files, spill_bytes, merge_steps, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var tokens, bigrams, durationMS int64
	err := row.Scan(&r.RunID, &r.CreatedAt, &r.FinishedAt, &r.Status, &r.InputDir, &r.OutputFile,
		&r.ConfigHash, &r.FailedStage, &r.ErrorMessage, &r.Stats.Shards, &r.Stats.Articles,
		&r.Stats.SkippedArticles, &tokens, &bigrams, &r.Stats.DistinctUnigrams,
		&r.Stats.DistinctBigrams, &r.Stats.SpillFiles, &r.Stats.SpillBytes, &r.Stats.MergeSteps, &durationMS)
	r.Stats.Tokens = uint64(tokens)
	r.Stats.Bigrams = uint64(bigrams)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, err
}

// GetRunByID retrieves a run by its ID
func (db *DB) GetRunByID(runID int64) (*Run, error) {
	r, err := scanRun(db.QueryRow("SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListRuns retrieves runs ordered by most recent first
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY run_id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunOutputs retrieves the output files recorded for a run.
func (db *DB) GetRunOutputs(runID int64) ([]models.OutputFile, error) {
	rows, err := db.Query(`
		SELECT kind, path, COALESCE(sha256, ''), size_bytes
		FROM run_outputs
		WHERE run_id = ?
		ORDER BY output_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run outputs: %w", err)
	}
	defer rows.Close()

	var outputs []models.OutputFile
	for rows.Next() {
		var out models.OutputFile
		if err := rows.Scan(&out.Kind, &out.Path, &out.SHA256, &out.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan run output: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// GetRunTopNGrams retrieves up to limit ranked n-grams of one order.
func (db *DB) GetRunTopNGrams(runID int64, order, limit int) ([]models.CountRecord, error) {
	query := `
		SELECT first_token, second_token, count, docs
		FROM run_top_ngrams
		WHERE run_id = ? AND ngram_order = ?
		ORDER BY rank
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query, runID, order)
	if err != nil {
		return nil, fmt.Errorf("failed to get top n-grams: %w", err)
	}
	defer rows.Close()

	var recs []models.CountRecord
	for rows.Next() {
		var rec models.CountRecord
		var count, docs int64
		if err := rows.Scan(&rec.NGram.First, &rec.NGram.Second, &count, &docs); err != nil {
			return nil, fmt.Errorf("failed to scan top n-gram: %w", err)
		}
		rec.Count, rec.Docs = uint64(count), uint64(docs)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
