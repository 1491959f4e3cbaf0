package db

import (
	"database/sql"
	"errors"

	"educhat/models"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNoRows = errors.New("no rows found")

const historyPageSize = 50

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			course TEXT NOT NULL,
			sender TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			recipient TEXT NOT NULL,
			recipient_name TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS peers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			last_seen TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(course, sender, sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(course, recipient, sent_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// Message methods

func (db *DB) SaveMessage(m models.Message) error {
	_, err := db.conn.Exec(
		`INSERT INTO messages (id, course, sender, sender_name, recipient, recipient_name, content, sent_at, is_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		m.ID, m.CourseID, m.SenderID, m.SenderName, m.ReceiverID, m.ReceiverName, m.Content, m.SentAt,
	)
	return err
}

// GetMessages returns one page of the conversation between user and peer in a
// course, both directions, oldest first. Page 0 is the newest page.
func (db *DB) GetMessages(courseID, user, peer string, page int) ([]models.Message, error) {
	query := `
		SELECT id, course, sender, sender_name, recipient, recipient_name, content, sent_at, is_deleted
		FROM (
			SELECT * FROM messages
			WHERE course = ? AND ((sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?))
			ORDER BY sent_at DESC
			LIMIT ? OFFSET ?
		)
		ORDER BY sent_at ASC
	`

	rows, err := db.conn.Query(query, courseID, user, peer, peer, user, historyPageSize, page*historyPageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.CourseID, &m.SenderID, &m.SenderName,
			&m.ReceiverID, &m.ReceiverName, &m.Content, &m.SentAt, &m.IsDeleted); err != nil {
			return nil, err
		}
		if m.IsDeleted {
			m.Content = models.DeletedContent
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (db *DB) GetMessage(id string) (models.Message, error) {
	var m models.Message
	err := db.conn.QueryRow(
		`SELECT id, course, sender, sender_name, recipient, recipient_name, content, sent_at, is_deleted
		 FROM messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.CourseID, &m.SenderID, &m.SenderName,
		&m.ReceiverID, &m.ReceiverName, &m.Content, &m.SentAt, &m.IsDeleted)
	if err == sql.ErrNoRows {
		return models.Message{}, ErrNoRows
	}
	if err != nil {
		return models.Message{}, err
	}
	if m.IsDeleted {
		m.Content = models.DeletedContent
	}
	return m, nil
}

// MarkDeleted tombstones a message. The row stays so history keeps its place
// in the conversation; only the content is blanked.
func (db *DB) MarkDeleted(id string) error {
	result, err := db.conn.Exec(
		"UPDATE messages SET is_deleted = 1, content = '' WHERE id = ?", id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNoRows
	}

	return nil
}

// Peer methods

func (db *DB) UpsertPeer(id, name, lastSeen string) error {
	_, err := db.conn.Exec(
		`INSERT INTO peers (id, name, last_seen) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, last_seen = excluded.last_seen`,
		id, name, lastSeen,
	)
	return err
}

// GetPeers returns everyone the user has exchanged messages with, most
// recently active first.
func (db *DB) GetPeers(user string) ([]models.Peer, error) {
	query := `
		SELECT p.id, p.name, p.last_seen
		FROM peers p
		JOIN (
			SELECT CASE WHEN sender = ? THEN recipient ELSE sender END AS peer_id,
			       MAX(sent_at) AS last_msg
			FROM messages
			WHERE sender = ? OR recipient = ?
			GROUP BY peer_id
		) m ON m.peer_id = p.id
		ORDER BY m.last_msg DESC
	`

	rows, err := db.conn.Query(query, user, user, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []models.Peer
	for rows.Next() {
		var p models.Peer
		if err := rows.Scan(&p.ID, &p.Name, &p.LastSeen); err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}

	return peers, rows.Err()
}
