package store

// Relational layout: one row per loaded source, deduplicated location and
// modality dimensions, and facts referencing both. The denuncias view joins
// them back into the canonical shape for ad hoc queries.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		mod_time TEXT NOT NULL,
		loaded_at TEXT NOT NULL,
		row_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id INTEGER PRIMARY KEY,
		department TEXT NOT NULL,
		province TEXT NOT NULL,
		district TEXT NOT NULL,
		UNIQUE (department, province, district)
	)`,
	`CREATE TABLE IF NOT EXISTS modalities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS facts (
		id INTEGER PRIMARY KEY,
		source_id INTEGER NOT NULL REFERENCES sources(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		location_id INTEGER REFERENCES locations(id),
		modality_id INTEGER REFERENCES modalities(id),
		count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS facts_period ON facts (year, month)`,
	`CREATE VIEW IF NOT EXISTS denuncias AS ` + denunciasView,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGINT PRIMARY KEY,
		path TEXT NOT NULL,
		size BIGINT NOT NULL,
		mod_time TEXT NOT NULL,
		loaded_at TEXT NOT NULL,
		row_count BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id BIGINT PRIMARY KEY,
		department TEXT NOT NULL,
		province TEXT NOT NULL,
		district TEXT NOT NULL,
		UNIQUE (department, province, district)
	)`,
	`CREATE TABLE IF NOT EXISTS modalities (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS facts (
		id BIGINT PRIMARY KEY,
		source_id BIGINT NOT NULL REFERENCES sources(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		location_id BIGINT REFERENCES locations(id),
		modality_id BIGINT REFERENCES modalities(id),
		count BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS facts_period ON facts (year, month)`,
	`CREATE OR REPLACE VIEW denuncias AS ` + denunciasView,
}

const denunciasView = `SELECT
		f.year AS year,
		f.month AS month,
		COALESCE(l.department, '') AS department,
		COALESCE(l.province, '') AS province,
		COALESCE(l.district, '') AS district,
		COALESCE(m.name, '') AS modality,
		f.count AS count
	FROM facts f
	LEFT JOIN locations l ON l.id = f.location_id
	LEFT JOIN modalities m ON m.id = f.modality_id`
