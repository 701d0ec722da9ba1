package store

// migration is one append-only, numbered schema change, applied in a single
// transaction and recorded in schema_migrations.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations lists every schema version in order. Version numbers are
// monotonic and never reused; append only.
var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
CREATE TABLE sources (
	source_id             TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	source_type           TEXT NOT NULL,
	url                   TEXT NOT NULL,
	poll_interval_seconds INTEGER NOT NULL,
	enabled               INTEGER NOT NULL DEFAULT 1,
	etag                  TEXT NOT NULL DEFAULT '',
	last_modified         TEXT NOT NULL DEFAULT '',
	next_fetch_at         TEXT NOT NULL DEFAULT '',
	last_fetch_at         TEXT NOT NULL DEFAULT '',
	last_success_at       TEXT NOT NULL DEFAULT '',
	last_error_at         TEXT NOT NULL DEFAULT '',
	consecutive_failures  INTEGER NOT NULL DEFAULT 0,
	last_status_code      INTEGER NOT NULL DEFAULT 0,
	last_fetch_ms         INTEGER NOT NULL DEFAULT 0,
	last_error            TEXT NOT NULL DEFAULT '',
	success_count         INTEGER NOT NULL DEFAULT 0,
	error_count           INTEGER NOT NULL DEFAULT 0,
	cursor                TEXT NOT NULL DEFAULT ''
);

CREATE TABLE items (
	item_id             TEXT PRIMARY KEY,
	source_id           TEXT NOT NULL REFERENCES sources(source_id),
	source_type         TEXT NOT NULL,
	external_id         TEXT,
	url                 TEXT NOT NULL UNIQUE,
	title               TEXT NOT NULL,
	summary             TEXT NOT NULL DEFAULT '',
	content             TEXT NOT NULL DEFAULT '',
	published_at        TEXT NOT NULL,
	updated_at          TEXT,
	fetched_at          TEXT NOT NULL,
	category            TEXT NOT NULL,
	tags                TEXT NOT NULL DEFAULT '[]',
	geom_geojson        TEXT,
	lat                 REAL,
	lon                 REAL,
	location_name       TEXT NOT NULL DEFAULT '',
	location_confidence TEXT NOT NULL,
	location_rationale  TEXT NOT NULL DEFAULT '',
	raw                 TEXT NOT NULL DEFAULT '{}',
	hash_title          TEXT NOT NULL,
	hash_content        TEXT NOT NULL,
	simhash             INTEGER NOT NULL,
	incident_id         TEXT,
	UNIQUE(source_id, external_id)
);

CREATE INDEX idx_items_source_hashtitle ON items(source_id, hash_title, published_at);
CREATE INDEX idx_items_incident ON items(incident_id);
CREATE INDEX idx_items_category_simhash ON items(category, simhash, published_at);

CREATE VIRTUAL TABLE items_fts USING fts5(
	title, summary, content, content='items', content_rowid='rowid'
);

CREATE TRIGGER items_ai AFTER INSERT ON items BEGIN
	INSERT INTO items_fts(rowid, title, summary, content) VALUES (new.rowid, new.title, new.summary, new.content);
END;
CREATE TRIGGER items_ad AFTER DELETE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, title, summary, content) VALUES('delete', old.rowid, old.title, old.summary, old.content);
END;

CREATE TABLE incidents (
	incident_id         TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	summary             TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL,
	first_seen_at       TEXT NOT NULL,
	last_seen_at        TEXT NOT NULL,
	last_item_at        TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'active',
	severity_score      REAL NOT NULL DEFAULT 0,
	geom_geojson        TEXT,
	lat                 REAL,
	lon                 REAL,
	bbox_min_lon        REAL,
	bbox_min_lat        REAL,
	bbox_max_lon        REAL,
	bbox_max_lat        REAL,
	location_confidence TEXT NOT NULL,
	location_rationale  TEXT NOT NULL DEFAULT '',
	incident_simhash    INTEGER NOT NULL,
	token_signature     TEXT NOT NULL DEFAULT '',
	item_count          INTEGER NOT NULL DEFAULT 0,
	source_count        INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_incidents_category_lastseen ON incidents(category, last_seen_at);
CREATE INDEX idx_incidents_status ON incidents(status, last_seen_at);

CREATE TABLE places (
	kind            TEXT NOT NULL,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	country         TEXT NOT NULL DEFAULT '',
	lat             REAL NOT NULL,
	lon             REAL NOT NULL,
	PRIMARY KEY (kind, normalized_name)
);

CREATE TABLE app_config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
}
