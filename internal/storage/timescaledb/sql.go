package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS inform_runs (
    id uuid PRIMARY KEY,
    created_at timestamp WITH TIME ZONE NOT NULL,
    flight text NOT NULL,
    model text NOT NULL DEFAULT '',
    start_time timestamp WITH TIME ZONE NOT NULL,
    end_time timestamp WITH TIME ZONE NOT NULL,
    row_count integer NOT NULL DEFAULT 0,
    segment_count integer NOT NULL DEFAULT 0,
    cell_count integer NOT NULL DEFAULT 0,
    min_in_cloud_altitude double precision NULL,
    warnings bytea NULL
);`

const createBlocksTableSQL = `
CREATE TABLE IF NOT EXISTS inform_blocks (
    run_id uuid NOT NULL REFERENCES inform_runs(id) ON DELETE CASCADE,
    kind text NOT NULL,
    seq integer NOT NULL,
    label text NOT NULL DEFAULT '',
    start_time timestamp WITH TIME ZONE NOT NULL,
    end_time timestamp WITH TIME ZONE NOT NULL,
    lower_bound double precision NULL,
    upper_bound double precision NULL,
    location text NOT NULL DEFAULT '',
    block_id integer NOT NULL DEFAULT 0,
    row_count integer NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, kind, seq)
);`

// Cells are a hypertable on the cell mid-time, so no foreign key.
const createCellsTableSQL = `
CREATE TABLE IF NOT EXISTS inform_cells (
    time timestamp WITH TIME ZONE NOT NULL,
    run_id uuid NOT NULL,
    seq integer NOT NULL,
    latitude double precision NULL,
    longitude double precision NULL,
    altitude double precision NULL,
    vals bytea NULL
);`

const createCellsHypertableSQL = `SELECT create_hypertable('inform_cells', 'time', chunk_time_interval => INTERVAL '30 days', if_not_exists => true);`

const createCellsIndexSQL = `CREATE INDEX IF NOT EXISTS inform_cells_run_idx ON inform_cells (run_id, time);`
