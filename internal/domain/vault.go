package domain

import "time"

// Cipher is a vault item. Typed columns exist for querying; Data holds the
// full client JSON verbatim so unknown fields survive a round trip untouched.
type Cipher struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    string     `gorm:"index:idx_ciphers_user_updated;not null;size:36"`
	Type      int        `gorm:"not null"`
	FolderID  *string    `gorm:"size:36"`
	Name      string     ``
	Favorite  bool       `gorm:"not null;default:false"`
	Reprompt  int        ``
	Key       *string    ``
	Data      string     `gorm:"not null"`
	CreatedAt time.Time  ``
	UpdatedAt time.Time  `gorm:"index:idx_ciphers_user_updated"`
	DeletedAt *time.Time `gorm:"index"`
}

type Folder struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"index;not null;size:36"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time ``
	UpdatedAt time.Time ``
}

// Attachment is encrypted file metadata; the blob itself lives in the
// S3-compatible object store under the attachment id.
type Attachment struct {
	ID       string  `gorm:"primaryKey;size:36"`
	CipherID string  `gorm:"index;not null;size:36"`
	FileName string  `gorm:"not null"`
	Size     int64   `gorm:"not null"`
	SizeName string  `gorm:"not null"`
	Key      *string ``
}
