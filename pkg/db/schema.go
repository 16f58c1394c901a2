package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: one row per counting run, updated when the run ends
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP,
    status TEXT NOT NULL DEFAULT 'running',  -- running, succeeded, failed
    input_dir TEXT NOT NULL,
    output_file TEXT NOT NULL,
    config_yaml TEXT,
    config_hash TEXT,

    -- Failure details
    failed_stage TEXT,                        -- aggregate, merge, output
    error_message TEXT,

    -- Totals
    shards INTEGER DEFAULT 0,
    articles INTEGER DEFAULT 0,
    skipped_articles INTEGER DEFAULT 0,
    tokens INTEGER DEFAULT 0,
    bigrams INTEGER DEFAULT 0,
    distinct_unigrams INTEGER DEFAULT 0,
    distinct_bigrams INTEGER DEFAULT 0,
    spill_files INTEGER DEFAULT 0,
    spill_bytes INTEGER DEFAULT 0,
    merge_steps INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_config_hash ON runs(config_hash);

-- Run outputs: durable files of a successful run with their hashes
CREATE TABLE IF NOT EXISTS run_outputs (
    output_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    kind TEXT NOT NULL,                       -- arpa, topk, topk-bigrams, merged, report
    path TEXT NOT NULL,
    sha256 TEXT,
    size_bytes INTEGER DEFAULT 0,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_outputs_run ON run_outputs(run_id);
CREATE INDEX IF NOT EXISTS idx_outputs_sha256 ON run_outputs(sha256);

-- Top n-grams of a run, ranked per order (1 = unigram, 2 = bigram)
CREATE TABLE IF NOT EXISTS run_top_ngrams (
    run_id INTEGER NOT NULL,
    ngram_order INTEGER NOT NULL,
    rank INTEGER NOT NULL,
    first_token TEXT NOT NULL,
    second_token TEXT NOT NULL DEFAULT '',
    count INTEGER NOT NULL,
    docs INTEGER DEFAULT 0,
    PRIMARY KEY (run_id, ngram_order, rank),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_top_ngrams_token ON run_top_ngrams(first_token);
`
