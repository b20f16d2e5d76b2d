package identity

import "time"

// PasswordGrantRequest carries the form fields of a password or refresh
// grant. Clients send the client-side KDF output as the password; the raw
// master password never reaches the server.
type PasswordGrantRequest struct {
	Username string
	Password string

	DeviceIdentifier string
	DeviceName       string
	DeviceType       int

	TwoFactorToken    string
	TwoFactorProvider string
	TwoFactorRemember bool
}

// KdfInfo mirrors the client-side KDF configuration of the account.
type KdfInfo struct {
	KdfType        int  `json:"Kdf"`
	KdfIterations  int  `json:"KdfIterations"`
	KdfMemory      *int `json:"KdfMemory"`
	KdfParallelism *int `json:"KdfParallelism"`
}

type masterPasswordUnlockKdf struct {
	KdfType     int  `json:"KdfType"`
	Iterations  int  `json:"Iterations"`
	Memory      *int `json:"Memory,omitempty"`
	Parallelism *int `json:"Parallelism,omitempty"`
}

// MasterPasswordUnlock tells the client how to derive the master key.
// Salt is the canonical lowercased account email, the same value the client
// used at registration.
type MasterPasswordUnlock struct {
	Kdf                       masterPasswordUnlockKdf `json:"Kdf"`
	MasterKeyEncryptedUserKey string                  `json:"MasterKeyEncryptedUserKey"`
	Salt                      string                  `json:"Salt"`
}

type UserDecryptionOptions struct {
	Object               string               `json:"Object"`
	HasMasterPassword    bool                 `json:"HasMasterPassword"`
	MasterPasswordUnlock MasterPasswordUnlock `json:"MasterPasswordUnlock"`
}

type masterPasswordPolicy struct {
	Object string `json:"Object"`
}

// TokenResponse is the successful grant payload: OAuth fields in snake_case,
// Bitwarden extensions in PascalCase, exactly as clients expect.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`

	Key        string `json:"Key"`
	PrivateKey string `json:"PrivateKey,omitempty"`

	KdfInfo

	ForcePasswordReset    bool                  `json:"ForcePasswordReset"`
	ResetMasterPassword   bool                  `json:"ResetMasterPassword"`
	UnofficialServer      bool                  `json:"unofficialServer"`
	MasterPasswordPolicy  masterPasswordPolicy  `json:"MasterPasswordPolicy"`
	UserDecryptionOptions UserDecryptionOptions `json:"UserDecryptionOptions"`

	// TwoFactorToken is only present when the client asked to be remembered
	// after a successful TOTP challenge.
	TwoFactorToken string `json:"TwoFactorToken,omitempty"`
}

// DeviceResponse is one known device of the account.
type DeviceResponse struct {
	ID           string    `json:"Id"`
	Name         string    `json:"Name"`
	Type         int       `json:"Type"`
	Identifier   string    `json:"Identifier"`
	CreationDate time.Time `json:"CreationDate"`
	Object       string    `json:"Object"`
}

type PreloginRequest struct {
	Email string `json:"email" binding:"required"`
}

// PreloginResponse always answers, even for unknown accounts, so the
// endpoint cannot be used to probe which email is registered.
type PreloginResponse struct {
	Kdf            int  `json:"kdf"`
	KdfIterations  int  `json:"kdfIterations"`
	KdfMemory      *int `json:"kdfMemory,omitempty"`
	KdfParallelism *int `json:"kdfParallelism,omitempty"`
}
