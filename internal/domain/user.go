package domain

import "time"

// User is the single registered account of the server.
//
// Key, PrivateKey and PublicKey are opaque encrypted blobs produced by the
// client; the server stores and returns them without ever interpreting them.
// MasterPasswordHash is the client-side KDF output, not a server-side hash.
type User struct {
	ID    string `json:"id" gorm:"primaryKey;size:36"`
	Email string `json:"email" gorm:"uniqueIndex;not null"`
	Name  string `json:"name"`

	MasterPasswordHash string `json:"-" gorm:"not null"`

	Key        string `json:"-" gorm:"not null"`
	PrivateKey string `json:"-"`
	PublicKey  string `json:"-"`

	KdfType        int  `json:"kdf_type" gorm:"not null"`
	KdfIterations  int  `json:"kdf_iterations" gorm:"not null"`
	KdfMemory      *int `json:"kdf_memory,omitempty"`
	KdfParallelism *int `json:"kdf_parallelism,omitempty"`

	// SecurityStamp changes on every credential-affecting mutation. Access
	// tokens embed the stamp current at issuance; a mismatch on verification
	// invalidates every previously issued token without a revocation list.
	SecurityStamp string `json:"-" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRevision tracks the last vault mutation per user for sync clients.
type UserRevision struct {
	UserID       string    `gorm:"primaryKey;size:36"`
	RevisionDate time.Time `gorm:"not null"`
}

func (UserRevision) TableName() string { return "user_revisions" }
