package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS countries (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS regions (
	country_code TEXT NOT NULL REFERENCES countries(code) ON DELETE CASCADE,
	code         TEXT NOT NULL,
	name         TEXT NOT NULL,
	PRIMARY KEY (country_code, code)
);

CREATE TABLE IF NOT EXISTS cities (
	country_code TEXT NOT NULL,
	region_code  TEXT NOT NULL,
	name         TEXT NOT NULL,
	PRIMARY KEY (country_code, region_code, name),
	FOREIGN KEY (country_code, region_code)
		REFERENCES regions(country_code, code) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_regions_country ON regions(country_code);
CREATE INDEX IF NOT EXISTS idx_cities_region ON cities(country_code, region_code);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS recent_locations (
	id      TEXT PRIMARY KEY,
	country TEXT NOT NULL,
	state   TEXT NOT NULL,
	city    TEXT NOT NULL,
	used_at DATETIME NOT NULL,
	UNIQUE(country, state, city)
);

CREATE INDEX IF NOT EXISTS idx_recent_locations_used_at ON recent_locations(used_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
