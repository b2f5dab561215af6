package domain

import (
	"encoding/json"
	"time"
)

// UserRecord is the provisioned account of a buyer, keyed by email.
// SecretHash is a bcrypt hash; the plaintext secret is never stored.
type UserRecord struct {
	Email        string     `json:"email" dynamodbav:"email"`
	SecretHash   string     `json:"-" dynamodbav:"secret_hash"`
	Credits      int        `json:"credits" dynamodbav:"credits"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
	LastAccessAt *time.Time `json:"last_access,omitempty" dynamodbav:"last_access_at,omitempty"`
}

// SnapshotEntry is the published view of a single record. The field names
// keep the layout of the legacy credentials.json file.
type SnapshotEntry struct {
	Secret  string `json:"password"`
	Credits int    `json:"credits"`
}

// Snapshot is the full state of the user store keyed by email.
type Snapshot map[string]SnapshotEntry

// SnapshotOf builds a Snapshot from a list of records.
func SnapshotOf(records []UserRecord) Snapshot {
	s := make(Snapshot, len(records))
	for _, r := range records {
		s[r.Email] = SnapshotEntry{Secret: r.SecretHash, Credits: r.Credits}
	}
	return s
}

// Marshal renders the snapshot as indented JSON with sorted keys.
func (s Snapshot) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
