package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vaultgate/internal/domain"
	"vaultgate/internal/storage"
)

// Bitwarden clients parse revision timestamps in this exact shape.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Service contains the vault business logic: sync assembly, cipher and
// folder lifecycle, and attachment handling.
type Service struct {
	ciphers     CipherRepositoryInterface
	folders     FolderRepositoryInterface
	attachments AttachmentRepositoryInterface
	revisions   RevisionRepositoryInterface
	usedTokens  UsedTokenRepositoryInterface
	blobs       storage.BlobStore
	tokens      fileTokenService
	notifier    Notifier

	now func() time.Time
}

func NewService(
	ciphers CipherRepositoryInterface,
	folders FolderRepositoryInterface,
	attachments AttachmentRepositoryInterface,
	revisions RevisionRepositoryInterface,
	usedTokens UsedTokenRepositoryInterface,
	blobs storage.BlobStore,
	tokens fileTokenService,
	notifier Notifier,
) *Service {
	return &Service{
		ciphers:     ciphers,
		folders:     folders,
		attachments: attachments,
		revisions:   revisions,
		usedTokens:  usedTokens,
		blobs:       blobs,
		tokens:      tokens,
		notifier:    notifier,
		now:         time.Now,
	}
}

// Sync assembles the full account snapshot. The profile object is built by
// the accounts module and passed through untouched.
func (s *Service) Sync(ctx context.Context, userID string, profile any) (*SyncResponse, error) {
	ciphers, err := s.ciphers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	folders, err := s.folders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cipherIDs := make([]string, len(ciphers))
	for i, c := range ciphers {
		cipherIDs[i] = c.ID
	}
	attachments, err := s.attachments.ListByCiphers(ctx, cipherIDs)
	if err != nil {
		return nil, err
	}
	byCipher := make(map[string][]domain.Attachment)
	for _, a := range attachments {
		byCipher[a.CipherID] = append(byCipher[a.CipherID], a)
	}

	resp := &SyncResponse{
		Profile:     profile,
		Folders:     make([]map[string]any, 0, len(folders)),
		Collections: []any{},
		Ciphers:     make([]map[string]any, 0, len(ciphers)),
		Domains: domainsResponse{
			GlobalEquivalentDomains: []any{},
			Object:                  "domains",
		},
		Policies: []any{},
		Sends:    []any{},
		Object:   "sync",
	}
	for _, f := range folders {
		resp.Folders = append(resp.Folders, folderResponse(&f))
	}
	for _, c := range ciphers {
		resp.Ciphers = append(resp.Ciphers, cipherResponse(&c, byCipher[c.ID]))
	}
	return resp, nil
}

// CreateCipher stores a new vault item. The payload map is persisted
// verbatim; only the indexed columns are interpreted.
func (s *Service) CreateCipher(ctx context.Context, userID string, payload map[string]any) (map[string]any, error) {
	now := s.now().UTC()
	cipher, err := cipherFromPayload(userID, uuid.NewString(), payload, now)
	if err != nil {
		return nil, err
	}
	cipher.CreatedAt = now

	if err := s.ciphers.Create(ctx, cipher); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	return cipherResponse(cipher, nil), nil
}

// ListCiphers returns the user's items, trash excluded unless asked for.
func (s *Service) ListCiphers(ctx context.Context, userID string, includeDeleted bool) ([]map[string]any, error) {
	ciphers, err := s.ciphers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cipherIDs := make([]string, 0, len(ciphers))
	for _, c := range ciphers {
		cipherIDs = append(cipherIDs, c.ID)
	}
	attachments, err := s.attachments.ListByCiphers(ctx, cipherIDs)
	if err != nil {
		return nil, err
	}
	byCipher := make(map[string][]domain.Attachment)
	for _, a := range attachments {
		byCipher[a.CipherID] = append(byCipher[a.CipherID], a)
	}

	out := make([]map[string]any, 0, len(ciphers))
	for _, c := range ciphers {
		if c.DeletedAt != nil && !includeDeleted {
			continue
		}
		out = append(out, cipherResponse(&c, byCipher[c.ID]))
	}
	return out, nil
}

func (s *Service) GetCipher(ctx context.Context, userID, id string) (map[string]any, error) {
	cipher, err := s.ciphers.GetByID(ctx, userID, id)
	if err != nil {
		return nil, ErrNotFound
	}
	attachments, err := s.attachments.ListByCipher(ctx, cipher.ID)
	if err != nil {
		return nil, err
	}
	return cipherResponse(cipher, attachments), nil
}

// UpdateCipher replaces the stored payload wholesale. Clients always send
// the complete item, so a partial merge would only mask bugs.
func (s *Service) UpdateCipher(ctx context.Context, userID, id string, payload map[string]any) (map[string]any, error) {
	existing, err := s.ciphers.GetByID(ctx, userID, id)
	if err != nil {
		return nil, ErrNotFound
	}

	now := s.now().UTC()
	cipher, err := cipherFromPayload(userID, id, payload, now)
	if err != nil {
		return nil, err
	}
	cipher.CreatedAt = existing.CreatedAt
	cipher.DeletedAt = existing.DeletedAt

	if err := s.ciphers.Update(ctx, cipher); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByCipher(ctx, cipher.ID)
	if err != nil {
		return nil, err
	}
	return cipherResponse(cipher, attachments), nil
}

// PartialUpdateCipher changes only folder membership and the favorite flag.
// The raw payload map is inspected for key presence so that an explicit
// folderId null (move to no folder) is distinct from the key being absent.
func (s *Service) PartialUpdateCipher(ctx context.Context, userID, id string, payload map[string]any) (map[string]any, error) {
	cipher, err := s.ciphers.GetByID(ctx, userID, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if raw, ok := payload["folderId"]; ok {
		if folderID, isString := raw.(string); isString && folderID != "" {
			cipher.FolderID = &folderID
		} else {
			cipher.FolderID = nil
		}
	}
	if raw, ok := payload["favorite"]; ok {
		favorite, _ := raw.(bool)
		cipher.Favorite = favorite
	}
	cipher.UpdatedAt = s.now().UTC()

	if err := s.ciphers.Update(ctx, cipher); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByCipher(ctx, cipher.ID)
	if err != nil {
		return nil, err
	}
	return cipherResponse(cipher, attachments), nil
}

// DeleteCipher removes the item permanently, attachments and blobs included.
func (s *Service) DeleteCipher(ctx context.Context, userID, id string) error {
	cipher, err := s.ciphers.GetByID(ctx, userID, id)
	if err != nil {
		return ErrNotFound
	}

	attachments, err := s.attachments.ListByCipher(ctx, cipher.ID)
	if err != nil {
		return err
	}
	for _, a := range attachments {
		if err := s.blobs.Delete(ctx, blobKey(cipher.ID, a.ID)); err != nil {
			return err
		}
		if err := s.attachments.Delete(ctx, cipher.ID, a.ID); err != nil {
			return err
		}
	}

	if err := s.ciphers.Delete(ctx, userID, id); err != nil {
		return ErrNotFound
	}
	return s.touch(ctx, userID)
}

// SoftDeleteCipher moves the item to trash; Restore brings it back. Both
// return the updated item, which clients use to refresh their local copy.
func (s *Service) SoftDeleteCipher(ctx context.Context, userID, id string) (map[string]any, error) {
	if err := s.ciphers.SoftDelete(ctx, userID, id, s.now().UTC()); err != nil {
		return nil, ErrNotFound
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	return s.GetCipher(ctx, userID, id)
}

func (s *Service) RestoreCipher(ctx context.Context, userID, id string) (map[string]any, error) {
	if err := s.ciphers.Restore(ctx, userID, id, s.now().UTC()); err != nil {
		return nil, ErrNotFound
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	return s.GetCipher(ctx, userID, id)
}

func (s *Service) SoftDeleteCiphers(ctx context.Context, userID string, ids []string) error {
	now := s.now().UTC()
	for _, id := range ids {
		if err := s.ciphers.SoftDelete(ctx, userID, id, now); err != nil {
			return ErrNotFound
		}
	}
	return s.touch(ctx, userID)
}

func (s *Service) MoveCiphers(ctx context.Context, userID string, req MoveCiphersRequest) error {
	err := s.ciphers.MoveToFolder(ctx, userID, req.IDs, req.FolderID, s.now().UTC())
	if err != nil {
		return err
	}
	return s.touch(ctx, userID)
}

// Import bulk-loads folders and ciphers from the clients' import tool and
// re-links the positional folder relationships to the fresh server ids.
func (s *Service) Import(ctx context.Context, userID string, req ImportRequest) error {
	now := s.now().UTC()

	folders := make([]domain.Folder, len(req.Folders))
	for i, f := range req.Folders {
		folders[i] = domain.Folder{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      f.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	folderByCipherIndex := make(map[int]string)
	for _, rel := range req.FolderRelationships {
		if rel.Value >= 0 && rel.Value < len(folders) {
			folderByCipherIndex[rel.Key] = folders[rel.Value].ID
		}
	}

	ciphers := make([]domain.Cipher, 0, len(req.Ciphers))
	for i, payload := range req.Ciphers {
		cipher, err := cipherFromPayload(userID, uuid.NewString(), payload, now)
		if err != nil {
			return err
		}
		cipher.CreatedAt = now
		if folderID, ok := folderByCipherIndex[i]; ok {
			cipher.FolderID = &folderID
			payload["folderId"] = folderID
			data, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			cipher.Data = string(data)
		}
		ciphers = append(ciphers, *cipher)
	}

	if err := s.folders.CreateBatch(ctx, folders); err != nil {
		return err
	}
	if err := s.ciphers.CreateBatch(ctx, ciphers); err != nil {
		return err
	}
	return s.touch(ctx, userID)
}

func (s *Service) ListFolders(ctx context.Context, userID string) ([]map[string]any, error) {
	folders, err := s.folders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(folders))
	for _, f := range folders {
		out = append(out, folderResponse(&f))
	}
	return out, nil
}

func (s *Service) GetFolder(ctx context.Context, userID, id string) (map[string]any, error) {
	folder, err := s.folders.GetByID(ctx, userID, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return folderResponse(folder), nil
}

func (s *Service) CreateFolder(ctx context.Context, userID string, req FolderRequest) (map[string]any, error) {
	now := s.now().UTC()
	folder := &domain.Folder{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	return folderResponse(folder), nil
}

func (s *Service) UpdateFolder(ctx context.Context, userID, id string, req FolderRequest) (map[string]any, error) {
	folder, err := s.folders.GetByID(ctx, userID, id)
	if err != nil {
		return nil, ErrNotFound
	}
	folder.Name = req.Name
	folder.UpdatedAt = s.now().UTC()
	if err := s.folders.Update(ctx, folder); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}
	return folderResponse(folder), nil
}

// DeleteFolder removes the folder and detaches its ciphers; the items
// themselves survive, folderless.
func (s *Service) DeleteFolder(ctx context.Context, userID, id string) error {
	if err := s.folders.Delete(ctx, userID, id); err != nil {
		return ErrNotFound
	}
	if err := s.ciphers.ClearFolderRefs(ctx, userID, id, s.now().UTC()); err != nil {
		return err
	}
	return s.touch(ctx, userID)
}

// CreateAttachment registers metadata for an upcoming upload and tells the
// client where to put the bytes (direct upload, fileUploadType 0).
func (s *Service) CreateAttachment(ctx context.Context, userID, cipherID string, req AttachmentRequest) (map[string]any, error) {
	cipher, err := s.ciphers.GetByID(ctx, userID, cipherID)
	if err != nil {
		return nil, ErrNotFound
	}

	attachment := &domain.Attachment{
		ID:       uuid.NewString(),
		CipherID: cipher.ID,
		FileName: req.FileName,
		Size:     req.FileSize,
		SizeName: sizeName(req.FileSize),
		Key:      req.Key,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}

	attachments, err := s.attachments.ListByCipher(ctx, cipher.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"object":         "attachment-fileUpload",
		"attachmentId":   attachment.ID,
		"url":            fmt.Sprintf("/api/ciphers/%s/attachment/%s", cipher.ID, attachment.ID),
		"fileUploadType": 0,
		"cipherResponse": cipherResponse(cipher, attachments),
	}, nil
}

// UploadAttachment stores the encrypted blob for previously created
// metadata. The recorded size is corrected if the actual upload differs.
func (s *Service) UploadAttachment(ctx context.Context, userID, cipherID, attachmentID string, body io.Reader, size int64) error {
	if _, err := s.ciphers.GetByID(ctx, userID, cipherID); err != nil {
		return ErrNotFound
	}
	attachment, err := s.attachments.GetByID(ctx, cipherID, attachmentID)
	if err != nil {
		return ErrNotFound
	}

	if err := s.blobs.Put(ctx, blobKey(cipherID, attachmentID), body, size); err != nil {
		return err
	}
	if attachment.Size != size {
		attachment.Size = size
		attachment.SizeName = sizeName(size)
		if err := s.attachments.Update(ctx, attachment); err != nil {
			return err
		}
	}
	return s.touch(ctx, userID)
}

// DeleteAttachment removes blob and metadata and returns the updated parent
// item.
func (s *Service) DeleteAttachment(ctx context.Context, userID, cipherID, attachmentID string) (map[string]any, error) {
	cipher, err := s.ciphers.GetByID(ctx, userID, cipherID)
	if err != nil {
		return nil, ErrNotFound
	}
	if err := s.blobs.Delete(ctx, blobKey(cipherID, attachmentID)); err != nil {
		return nil, err
	}
	if err := s.attachments.Delete(ctx, cipherID, attachmentID); err != nil {
		return nil, ErrNotFound
	}
	if err := s.touch(ctx, userID); err != nil {
		return nil, err
	}

	attachments, err := s.attachments.ListByCipher(ctx, cipher.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"cipher": cipherResponse(cipher, attachments)}, nil
}

// AttachmentDownloadToken mints the short-lived single-use token embedded in
// the download URL handed to an authenticated client.
func (s *Service) AttachmentDownloadToken(ctx context.Context, userID, cipherID, attachmentID string) (*domain.Attachment, string, error) {
	if _, err := s.ciphers.GetByID(ctx, userID, cipherID); err != nil {
		return nil, "", ErrNotFound
	}
	attachment, err := s.attachments.GetByID(ctx, cipherID, attachmentID)
	if err != nil {
		return nil, "", ErrNotFound
	}
	downloadToken, _, err := s.tokens.GenerateFileToken(cipherID, attachmentID)
	if err != nil {
		return nil, "", err
	}
	return attachment, downloadToken, nil
}

// DownloadAttachment redeems a download token. The token must match the
// path it was minted for and works exactly once; replays fail even while
// the token is still within its validity window.
func (s *Service) DownloadAttachment(ctx context.Context, cipherID, attachmentID, rawToken string) (*domain.Attachment, io.ReadCloser, error) {
	claims, err := s.tokens.ValidateFileToken(rawToken)
	if err != nil {
		return nil, nil, ErrInvalidFileToken
	}
	if claims.CipherID != cipherID || claims.AttachmentID != attachmentID {
		return nil, nil, ErrInvalidFileToken
	}

	fresh, err := s.usedTokens.MarkUsed(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, nil, err
	}
	if !fresh {
		return nil, nil, ErrFileTokenConsumed
	}

	attachment, err := s.attachments.GetByID(ctx, cipherID, attachmentID)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	body, _, err := s.blobs.Get(ctx, blobKey(cipherID, attachmentID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return attachment, body, nil
}

func (s *Service) touch(ctx context.Context, userID string) error {
	if err := s.revisions.Touch(ctx, userID, s.now().UTC()); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifySyncNeeded(userID)
	}
	return nil
}

func blobKey(cipherID, attachmentID string) string {
	return cipherID + "/" + attachmentID
}

// cipherFromPayload extracts the indexed columns and freezes the raw payload
// into the data column.
func cipherFromPayload(userID, id string, payload map[string]any, now time.Time) (*domain.Cipher, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var typed CipherRequest
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &domain.Cipher{
		ID:        id,
		UserID:    userID,
		Type:      typed.Type,
		FolderID:  typed.FolderID,
		Name:      typed.Name,
		Favorite:  typed.Favorite,
		Reprompt:  typed.Reprompt,
		Key:       typed.Key,
		Data:      string(data),
		UpdatedAt: now,
	}, nil
}

// cipherResponse rebuilds the client payload and overlays the
// server-authoritative fields.
func cipherResponse(c *domain.Cipher, attachments []domain.Attachment) map[string]any {
	out := map[string]any{}
	// Stored data is JSON we wrote ourselves; a decode failure would mean
	// store corruption, so fall back to the typed columns only.
	_ = json.Unmarshal([]byte(c.Data), &out)

	out["id"] = c.ID
	out["organizationId"] = nil
	out["folderId"] = c.FolderID
	out["type"] = c.Type
	out["favorite"] = c.Favorite
	out["reprompt"] = c.Reprompt
	out["key"] = c.Key
	out["edit"] = true
	out["viewPassword"] = true
	out["organizationUseTotp"] = false
	out["collectionIds"] = []any{}
	out["revisionDate"] = c.UpdatedAt.UTC().Format(timeFormat)
	out["creationDate"] = c.CreatedAt.UTC().Format(timeFormat)
	if c.DeletedAt != nil {
		out["deletedAt"] = c.DeletedAt.UTC().Format(timeFormat)
	} else {
		out["deletedAt"] = nil
	}
	if len(attachments) > 0 {
		list := make([]map[string]any, 0, len(attachments))
		for _, a := range attachments {
			list = append(list, attachmentResponse(&a, ""))
		}
		out["attachments"] = list
	} else {
		out["attachments"] = nil
	}
	out["object"] = "cipherDetails"
	return out
}

func attachmentResponse(a *domain.Attachment, url string) map[string]any {
	out := map[string]any{
		"id":       a.ID,
		"fileName": a.FileName,
		"size":     strconv.FormatInt(a.Size, 10),
		"sizeName": a.SizeName,
		"key":      a.Key,
		"object":   "attachment",
	}
	if url != "" {
		out["url"] = url
	}
	return out
}

func folderResponse(f *domain.Folder) map[string]any {
	return map[string]any{
		"id":           f.ID,
		"name":         f.Name,
		"revisionDate": f.UpdatedAt.UTC().Format(timeFormat),
		"object":       "folder",
	}
}

// sizeName renders the size the way clients display it.
func sizeName(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d Bytes", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %s", float64(size)/float64(div), []string{"KB", "MB", "GB", "TB"}[exp])
}
