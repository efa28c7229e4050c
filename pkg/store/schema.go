package store

// Table names shared by both backends and the sync engine.
const (
	TableUsers       = "users"
	TableBusinesses  = "businesses"
	TableBooks       = "books"
	TableEntries     = "entries"
	TableParties     = "parties"
	TableCategories  = "categories"
	TableTeam        = "business_team"
	TableActivityLog = "activity_logs"
	TableInvitations = "business_invitations"
)

// AllTables lists every table in creation order.
var AllTables = []string{
	TableUsers,
	TableBusinesses,
	TableBooks,
	TableEntries,
	TableParties,
	TableCategories,
	TableTeam,
	TableActivityLog,
	TableInvitations,
}

// SyncedTables lists the tables that participate in cloud sync. Users and
// activity logs stay device-local.
var SyncedTables = []string{
	TableBusinesses,
	TableBooks,
	TableEntries,
	TableParties,
	TableCategories,
	TableTeam,
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		password_hash TEXT,
		auth_provider TEXT NOT NULL DEFAULT 'local',
		photo_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS businesses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		category TEXT,
		type TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_by TEXT NOT NULL,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		business_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		remark TEXT,
		party_id TEXT,
		category_id TEXT,
		payment_mode TEXT NOT NULL DEFAULT 'cash',
		date_time TEXT NOT NULL,
		attachment_path TEXT,
		created_by TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		type TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		display_order INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS business_team (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		invited_by TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(business_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		business_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		field TEXT,
		old_value TEXT,
		new_value TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS business_invitations (
		token TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		invited_by TEXT NOT NULL,
		role TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_business ON books(business_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_book ON entries(book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_business ON entries(business_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date_time)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_party ON entries(party_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_category ON entries(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_parties_business ON parties(business_id)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_business ON categories(business_id)`,
	`CREATE INDEX IF NOT EXISTS idx_team_business ON business_team(business_id)`,
	`CREATE INDEX IF NOT EXISTS idx_team_user ON business_team(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_entry ON activity_logs(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_book ON activity_logs(book_id)`,
}
