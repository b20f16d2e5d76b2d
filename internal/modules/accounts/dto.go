package accounts

// RegisterKeys carries the client-generated asymmetric keypair. The private
// half arrives already encrypted under the user key.
type RegisterKeys struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
}

type RegisterRequest struct {
	Email              string        `json:"email" binding:"required,email"`
	Name               string        `json:"name"`
	MasterPasswordHash string        `json:"masterPasswordHash" binding:"required"`
	MasterPasswordHint string        `json:"masterPasswordHint"`
	Key                string        `json:"key" binding:"required"`
	Keys               *RegisterKeys `json:"keys"`
	KdfType            int           `json:"kdf"`
	KdfIterations      int           `json:"kdfIterations"`
	KdfMemory          *int          `json:"kdfMemory"`
	KdfParallelism     *int          `json:"kdfParallelism"`
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

type SetKeysRequest struct {
	PublicKey           string `json:"publicKey" binding:"required"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey" binding:"required"`
}

type ChangePasswordRequest struct {
	MasterPasswordHash    string `json:"masterPasswordHash" binding:"required"`
	NewMasterPasswordHash string `json:"newMasterPasswordHash" binding:"required"`
	Key                   string `json:"key" binding:"required"`
}

type VerifyPasswordRequest struct {
	MasterPasswordHash string `json:"masterPasswordHash" binding:"required"`
}

// ProfileResponse mirrors the Bitwarden profile object. Single-tenant
// server: the account is always verified and premium, and never belongs
// to an organization.
type ProfileResponse struct {
	ID                 string `json:"Id"`
	Name               string `json:"Name"`
	Email              string `json:"Email"`
	EmailVerified      bool   `json:"EmailVerified"`
	Premium            bool   `json:"Premium"`
	PremiumFromOrg     bool   `json:"PremiumFromOrganization"`
	Culture            string `json:"Culture"`
	TwoFactorEnabled   bool   `json:"TwoFactorEnabled"`
	Key                string `json:"Key"`
	PrivateKey         string `json:"PrivateKey,omitempty"`
	SecurityStamp      string `json:"SecurityStamp"`
	ForcePasswordReset bool   `json:"ForcePasswordReset"`
	UsesKeyConnector   bool   `json:"UsesKeyConnector"`
	Organizations      []any  `json:"Organizations"`
	Object             string `json:"Object"`
}
