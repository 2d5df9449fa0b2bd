package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// %[1]s is the timestamp type, %[2]s the current-time default.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member', 'guest')),
	avatar TEXT,
	department TEXT,
	created_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE TABLE IF NOT EXISTS credentials (
	profile_id TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
	password_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS oauth_tokens (
	profile_id TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
	token TEXT NOT NULL,
	updated_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE TABLE IF NOT EXISTS committees (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	chair_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	created_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE TABLE IF NOT EXISTS committee_members (
	committee_id TEXT NOT NULL REFERENCES committees(id) ON DELETE CASCADE,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	PRIMARY KEY (committee_id, profile_id)
);
CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	start_time %[1]s NOT NULL,
	end_time %[1]s NOT NULL,
	location TEXT,
	is_virtual BOOLEAN NOT NULL DEFAULT FALSE,
	meeting_link TEXT,
	status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'in_progress', 'completed', 'cancelled')),
	is_ad_hoc BOOLEAN NOT NULL DEFAULT FALSE,
	organizer_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	committee_id TEXT REFERENCES committees(id) ON DELETE SET NULL,
	created_at %[1]s NOT NULL DEFAULT %[2]s,
	updated_at %[1]s NOT NULL DEFAULT %[2]s,
	CHECK (end_time > start_time)
);
CREATE TABLE IF NOT EXISTS meeting_attendees (
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'declined', 'tentative')),
	PRIMARY KEY (meeting_id, profile_id)
);
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	uploaded_by TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	uploaded_at %[1]s NOT NULL DEFAULT %[2]s,
	meeting_id TEXT REFERENCES meetings(id) ON DELETE SET NULL,
	is_minutes BOOLEAN DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS agenda_items (
	id TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT,
	duration INTEGER NOT NULL DEFAULT 0,
	order_index INTEGER NOT NULL DEFAULT 0,
	presenter_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed', 'deferred')),
	created_at %[1]s NOT NULL DEFAULT %[2]s,
	updated_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE TABLE IF NOT EXISTS action_items (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	due_date %[1]s,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	created_at %[1]s NOT NULL DEFAULT %[2]s,
	updated_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE TABLE IF NOT EXISTS action_item_assignees (
	action_item_id TEXT NOT NULL REFERENCES action_items(id) ON DELETE CASCADE,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	PRIMARY KEY (action_item_id, profile_id)
);
CREATE TABLE IF NOT EXISTS annotations (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	position TEXT,
	created_at %[1]s NOT NULL DEFAULT %[2]s,
	updated_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	profile_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	details TEXT,
	created_at %[1]s NOT NULL DEFAULT %[2]s
);
CREATE INDEX IF NOT EXISTS idx_meetings_start_time ON meetings(start_time);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at);
CREATE INDEX IF NOT EXISTS idx_action_items_due_date ON action_items(due_date);
CREATE INDEX IF NOT EXISTS idx_meeting_attendees_profile ON meeting_attendees(profile_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id)
`

func schemaStatements(d Dialect) []string {
	tsType, now := "TIMESTAMP", "CURRENT_TIMESTAMP"
	if d == Postgres {
		tsType, now = "TIMESTAMPTZ", "now()"
	}
	ddl := fmt.Sprintf(schemaTemplate, tsType, now)

	var stmts []string
	for _, stmt := range strings.Split(ddl, ";\n") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// Migrate creates every table and index that does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.conn.exec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect, classify("migrate", err))
		}
	}
	s.logger.Info("database schema ready", "dialect", s.dialect.String())
	return nil
}
