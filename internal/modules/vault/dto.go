package vault

// CipherRequest is the typed subset of a cipher payload the server indexes.
// The full client JSON travels alongside and is stored verbatim, so fields
// the server does not understand still round-trip to other devices.
type CipherRequest struct {
	Type     int     `json:"type"`
	FolderID *string `json:"folderId"`
	Name     string  `json:"name"`
	Favorite bool    `json:"favorite"`
	Reprompt int     `json:"reprompt"`
	Key      *string `json:"key"`
}

// CreateCipherRequest wraps the payload variant used by newer clients that
// post to /ciphers/create with organization collection ids attached.
type CreateCipherRequest struct {
	Cipher        map[string]any `json:"cipher" binding:"required"`
	CollectionIDs []string       `json:"collectionIds"`
}

type MoveCiphersRequest struct {
	IDs      []string `json:"ids" binding:"required"`
	FolderID *string  `json:"folderId"`
}

type BulkCipherIDsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// AttachmentRequest announces an upcoming upload: display name, the
// per-attachment encryption key, and the size the client expects to send.
type AttachmentRequest struct {
	FileName string  `json:"fileName" binding:"required"`
	Key      *string `json:"key" binding:"required"`
	FileSize int64   `json:"fileSize"`
}

type FolderRequest struct {
	Name string `json:"name" binding:"required"`
}

type folderRelationship struct {
	Key   int `json:"key"`
	Value int `json:"value"`
}

// ImportRequest is the bulk payload produced by the clients' import tool:
// ciphers, folders, and index pairs linking cipher positions to folder
// positions.
type ImportRequest struct {
	Ciphers             []map[string]any     `json:"ciphers"`
	Folders             []FolderRequest      `json:"folders"`
	FolderRelationships []folderRelationship `json:"folderRelationships"`
}

type domainsResponse struct {
	EquivalentDomains       any    `json:"EquivalentDomains"`
	GlobalEquivalentDomains []any  `json:"GlobalEquivalentDomains"`
	Object                  string `json:"Object"`
}

// SyncResponse is the full account snapshot clients hydrate from.
type SyncResponse struct {
	Profile     any              `json:"Profile"`
	Folders     []map[string]any `json:"Folders"`
	Collections []any            `json:"Collections"`
	Ciphers     []map[string]any `json:"Ciphers"`
	Domains     domainsResponse  `json:"Domains"`
	Policies    []any            `json:"Policies"`
	Sends       []any            `json:"Sends"`
	Object      string           `json:"Object"`
}
