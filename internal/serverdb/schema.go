package serverdb

// ServerSchemaVersion is the current server database schema version
const ServerSchemaVersion = 3

const serverSchema = `
-- Auth identities
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('farmer', 'consultant', 'admin')),
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- API keys table
CREATE TABLE IF NOT EXISTS api_keys (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    key_hash TEXT UNIQUE NOT NULL,
    key_prefix TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    expires_at DATETIME,
    last_used_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Profiles are created by the trigger below, never by application code.
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT UNIQUE NOT NULL,
    full_name TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    avatar_url TEXT NOT NULL DEFAULT '',
    finalized_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TRIGGER IF NOT EXISTS trg_users_profile
AFTER INSERT ON users
WHEN NEW.role IN ('farmer', 'consultant')
BEGIN
    INSERT INTO profiles (id, user_id, full_name, phone, role, created_at)
    VALUES (
        'pr_' || lower(hex(randomblob(8))),
        NEW.id,
        COALESCE(json_extract(NEW.metadata, '$.full_name'), ''),
        COALESCE(json_extract(NEW.metadata, '$.phone'), ''),
        NEW.role,
        NEW.created_at
    );
END;

CREATE TABLE IF NOT EXISTS consultants (
    id TEXT PRIMARY KEY,
    profile_id TEXT UNIQUE NOT NULL,
    user_id TEXT UNIQUE NOT NULL,
    qualification TEXT NOT NULL DEFAULT '',
    specialization TEXT NOT NULL DEFAULT '',
    experience_years REAL NOT NULL DEFAULT 0,
    country TEXT NOT NULL DEFAULT '',
    province TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    documents TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS farmers (
    id TEXT PRIMARY KEY,
    profile_id TEXT UNIQUE,
    user_id TEXT UNIQUE,
    full_name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    province TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    farm_name TEXT NOT NULL DEFAULT '',
    farm_size_acres REAL NOT NULL DEFAULT 0,
    crops TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE SET NULL
);

-- At most one consultant per farmer.
CREATE TABLE IF NOT EXISTS consultant_farmers (
    farmer_id TEXT PRIMARY KEY,
    consultant_id TEXT NOT NULL,
    linked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (farmer_id) REFERENCES farmers(id) ON DELETE CASCADE,
    FOREIGN KEY (consultant_id) REFERENCES consultants(id) ON DELETE CASCADE
);

-- Schema info table
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);
CREATE INDEX IF NOT EXISTS idx_consultant_farmers_consultant ON consultant_farmers(consultant_id);
CREATE INDEX IF NOT EXISTS idx_farmers_email ON farmers(email);
`

// Migration defines a server database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all server database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add notifications and auth_events tables",
		SQL: `CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'info',
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			read_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);

		CREATE TABLE IF NOT EXISTS auth_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			event_type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_auth_events_created ON auth_events(created_at);`,
	},
	{
		Version:     3,
		Description: "Add soil_results table for classification history",
		SQL: `CREATE TABLE IF NOT EXISTS soil_results (
			id TEXT PRIMARY KEY,
			farmer_id TEXT NOT NULL,
			submitted_by TEXT NOT NULL,
			image_url TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			probabilities TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (farmer_id) REFERENCES farmers(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_soil_results_farmer ON soil_results(farmer_id, created_at);`,
	},
}
