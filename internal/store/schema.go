package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	mask TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS path_contexts (
	vpath TEXT PRIMARY KEY,
	text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	filepath TEXT NOT NULL,
	title TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	docid TEXT NOT NULL,
	body TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS documents_active_path
	ON documents(collection, filepath) WHERE active = 1;
CREATE INDEX IF NOT EXISTS documents_docid ON documents(docid);
CREATE INDEX IF NOT EXISTS documents_collection ON documents(collection);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	title,
	body,
	content='documents',
	content_rowid='id',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS documents_fts_insert AFTER INSERT ON documents
WHEN new.active = 1
BEGIN
	INSERT INTO documents_fts(rowid, title, body) VALUES (new.id, new.title, new.body);
END;

CREATE TRIGGER IF NOT EXISTS documents_fts_delete AFTER DELETE ON documents
BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, body)
	VALUES ('delete', old.id, old.title, old.body);
END;

CREATE TRIGGER IF NOT EXISTS documents_fts_deactivate AFTER UPDATE OF active ON documents
WHEN old.active = 1 AND new.active = 0
BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, body)
	VALUES ('delete', old.id, old.title, old.body);
END;

CREATE TABLE IF NOT EXISTS content_vectors (
	content_hash TEXT NOT NULL,
	seq INTEGER NOT NULL,
	pos INTEGER NOT NULL,
	model TEXT NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (content_hash, seq, model)
);
CREATE INDEX IF NOT EXISTS content_vectors_model ON content_vectors(model);

CREATE TABLE IF NOT EXISTS llm_cache (
	model TEXT NOT NULL,
	purpose TEXT NOT NULL,
	input_hash TEXT NOT NULL,
	response TEXT NOT NULL,
	PRIMARY KEY (model, purpose, input_hash)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vector_namespaces (
	namespace TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	dimensions INTEGER NOT NULL
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// vectorTableName derives the namespaced vector table name for a provider/model
// pair, folding punctuation to underscores per spec.md's naming rule.
func vectorTableName(namespace string) string {
	b := make([]byte, 0, len(namespace)+11)
	b = append(b, "vectors_vec_"...)
	for _, r := range namespace {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b = append(b, byte(r))
		case r >= 'A' && r <= 'Z':
			b = append(b, byte(r)+32)
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}

func vectorTableDDL(table string) string {
	return `CREATE TABLE IF NOT EXISTS "` + table + `" (
		hash_seq TEXT PRIMARY KEY,
		embedding BLOB NOT NULL
	)`
}
