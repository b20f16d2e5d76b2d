package vault

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"vaultgate/internal/domain"
	"vaultgate/internal/pkg/token"
	"vaultgate/internal/repository"
	"vaultgate/internal/storage"
)

const testUserID = "11111111-1111-4111-8111-111111111111"

// memBlobStore keeps blobs in a map, standing in for the S3 store.
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (m *memBlobStore) Put(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memBlobStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *recordingNotifier) NotifySyncNeeded(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

func newTestVault(t *testing.T) (*Service, *memBlobStore, *recordingNotifier) {
	t.Helper()
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: ":memory:"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.Cipher{}, &domain.Folder{}, &domain.Attachment{},
		&domain.UserRevision{}, &domain.UsedFileToken{},
	))

	blobs := newMemBlobStore()
	notifier := &recordingNotifier{}
	tokens := token.New("0123456789abcdef0123456789abcdef", "vaultgate", 2*time.Hour, 5*time.Minute)

	svc := NewService(
		repository.NewCipherRepository(db),
		repository.NewFolderRepository(db),
		repository.NewAttachmentRepository(db),
		repository.NewRevisionRepository(db),
		repository.NewUsedTokenRepository(db),
		blobs,
		tokens,
		notifier,
	)
	return svc, blobs, notifier
}

func loginPayload(name string) map[string]any {
	return map[string]any{
		"type":     1,
		"name":     name,
		"notes":    nil,
		"favorite": false,
		"login": map[string]any{
			"username": "2.enc|user|mac",
			"password": "2.enc|pass|mac",
			"uris":     []any{map[string]any{"uri": "2.enc|uri|mac", "match": nil}},
		},
		"customField": "round-trips untouched",
	}
}

func TestCreateAndGetCipherRoundTrip(t *testing.T) {
	svc, _, notifier := newTestVault(t)
	ctx := context.Background()

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)
	require.NotEmpty(t, created["id"])

	got, err := svc.GetCipher(ctx, testUserID, created["id"].(string))
	require.NoError(t, err)

	assert.Equal(t, "2.enc|site|mac", got["name"])
	assert.Equal(t, "round-trips untouched", got["customField"])
	assert.Equal(t, "cipherDetails", got["object"])
	assert.Equal(t, true, got["edit"])
	assert.Nil(t, got["deletedAt"])
	assert.Equal(t, 1, notifier.count)
}

func TestGetCipherWrongUser(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)

	_, err = svc.GetCipher(ctx, "22222222-2222-4222-8222-222222222222", created["id"].(string))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCipherReplacesPayload(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|old|mac"))
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := svc.UpdateCipher(ctx, testUserID, id, map[string]any{
		"type": 2,
		"name": "2.enc|new|mac",
	})
	require.NoError(t, err)

	assert.Equal(t, "2.enc|new|mac", updated["name"])
	// A full replace drops fields absent from the new payload.
	assert.NotContains(t, updated, "customField")
}

func TestSoftDeleteAndRestore(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)
	id := created["id"].(string)

	trashed, err := svc.SoftDeleteCipher(ctx, testUserID, id)
	require.NoError(t, err)
	assert.NotNil(t, trashed["deletedAt"])

	restored, err := svc.RestoreCipher(ctx, testUserID, id)
	require.NoError(t, err)
	assert.Nil(t, restored["deletedAt"])
}

func TestListCiphersSkipsTrashByDefault(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	kept, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|kept|mac"))
	require.NoError(t, err)
	trashed, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|trashed|mac"))
	require.NoError(t, err)
	_, err = svc.SoftDeleteCipher(ctx, testUserID, trashed["id"].(string))
	require.NoError(t, err)

	visible, err := svc.ListCiphers(ctx, testUserID, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, kept["id"], visible[0]["id"])

	all, err := svc.ListCiphers(ctx, testUserID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPartialUpdateCipher(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, testUserID, FolderRequest{Name: "2.enc|folder|mac"})
	require.NoError(t, err)
	folderID := folder["id"].(string)

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := svc.PartialUpdateCipher(ctx, testUserID, id, map[string]any{
		"folderId": folderID,
		"favorite": true,
	})
	require.NoError(t, err)
	assert.Equal(t, &folderID, updated["folderId"])
	assert.Equal(t, true, updated["favorite"])
	// The encrypted payload is untouched.
	assert.Equal(t, "2.enc|site|mac", updated["name"])

	// An explicit null folderId detaches; an absent key leaves it alone.
	updated, err = svc.PartialUpdateCipher(ctx, testUserID, id, map[string]any{"folderId": nil})
	require.NoError(t, err)
	assert.Nil(t, updated["folderId"].(*string))
	assert.Equal(t, true, updated["favorite"])
}

func TestGetFolder(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, testUserID, FolderRequest{Name: "2.enc|folder|mac"})
	require.NoError(t, err)
	folderID := folder["id"].(string)

	got, err := svc.GetFolder(ctx, testUserID, folderID)
	require.NoError(t, err)
	assert.Equal(t, folderID, got["id"])
	assert.Equal(t, "2.enc|folder|mac", got["name"])

	_, err = svc.GetFolder(ctx, testUserID, "no-such-folder")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFolderDetachesCiphers(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, testUserID, FolderRequest{Name: "2.enc|folder|mac"})
	require.NoError(t, err)
	folderID := folder["id"].(string)

	payload := loginPayload("2.enc|site|mac")
	payload["folderId"] = folderID
	created, err := svc.CreateCipher(ctx, testUserID, payload)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFolder(ctx, testUserID, folderID))

	got, err := svc.GetCipher(ctx, testUserID, created["id"].(string))
	require.NoError(t, err)
	assert.Nil(t, got["folderId"])
}

func TestMoveCiphers(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, testUserID, FolderRequest{Name: "2.enc|folder|mac"})
	require.NoError(t, err)
	folderID := folder["id"].(string)

	a, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|a|mac"))
	require.NoError(t, err)
	b, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|b|mac"))
	require.NoError(t, err)

	err = svc.MoveCiphers(ctx, testUserID, MoveCiphersRequest{
		IDs:      []string{a["id"].(string), b["id"].(string)},
		FolderID: &folderID,
	})
	require.NoError(t, err)

	got, err := svc.GetCipher(ctx, testUserID, a["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, folderID, got["folderId"])
}

func TestImportLinksFolders(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	err := svc.Import(ctx, testUserID, ImportRequest{
		Folders: []FolderRequest{{Name: "2.enc|work|mac"}, {Name: "2.enc|home|mac"}},
		Ciphers: []map[string]any{
			loginPayload("2.enc|a|mac"),
			loginPayload("2.enc|b|mac"),
			loginPayload("2.enc|c|mac"),
		},
		FolderRelationships: []folderRelationship{
			{Key: 0, Value: 1},
			{Key: 2, Value: 0},
		},
	})
	require.NoError(t, err)

	resp, err := svc.Sync(ctx, testUserID, nil)
	require.NoError(t, err)
	require.Len(t, resp.Folders, 2)
	require.Len(t, resp.Ciphers, 3)

	linked := 0
	for _, c := range resp.Ciphers {
		if c["folderId"] != nil {
			linked++
		}
	}
	assert.Equal(t, 2, linked)
}

func TestSyncShape(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	_, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)

	resp, err := svc.Sync(ctx, testUserID, map[string]any{"Object": "profile"})
	require.NoError(t, err)

	assert.Equal(t, "sync", resp.Object)
	assert.Equal(t, "domains", resp.Domains.Object)
	assert.NotNil(t, resp.Collections)
	assert.NotNil(t, resp.Policies)
	assert.NotNil(t, resp.Sends)
	assert.Len(t, resp.Ciphers, 1)
}

func TestAttachmentLifecycle(t *testing.T) {
	svc, blobs, _ := newTestVault(t)
	ctx := context.Background()

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)
	cipherID := created["id"].(string)

	blob := []byte("encrypted-bytes")
	key := "2.enc|attkey|mac"
	resp, err := svc.CreateAttachment(ctx, testUserID, cipherID, AttachmentRequest{
		FileName: "secret.png.enc",
		Key:      &key,
		FileSize: int64(len(blob)),
	})
	require.NoError(t, err)
	assert.Equal(t, "attachment-fileUpload", resp["object"])
	attachmentID := resp["attachmentId"].(string)

	require.NoError(t, svc.UploadAttachment(ctx, testUserID, cipherID, attachmentID,
		bytes.NewReader(blob), int64(len(blob))))

	// Mint a download token and redeem it.
	_, downloadToken, err := svc.AttachmentDownloadToken(ctx, testUserID, cipherID, attachmentID)
	require.NoError(t, err)

	attachment, body, err := svc.DownloadAttachment(ctx, cipherID, attachmentID, downloadToken)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, blob, data)
	assert.Equal(t, "secret.png.enc", attachment.FileName)

	// The token is single use.
	_, _, err = svc.DownloadAttachment(ctx, cipherID, attachmentID, downloadToken)
	assert.ErrorIs(t, err, ErrFileTokenConsumed)

	// Deleting the cipher sweeps blobs and metadata.
	require.NoError(t, svc.DeleteCipher(ctx, testUserID, cipherID))
	assert.Empty(t, blobs.blobs)
}

func TestDownloadRejectsMismatchedPath(t *testing.T) {
	svc, _, _ := newTestVault(t)
	ctx := context.Background()

	created, err := svc.CreateCipher(ctx, testUserID, loginPayload("2.enc|site|mac"))
	require.NoError(t, err)
	cipherID := created["id"].(string)

	blob := []byte("bytes")
	resp, err := svc.CreateAttachment(ctx, testUserID, cipherID, AttachmentRequest{FileName: "f.enc"})
	require.NoError(t, err)
	attachmentID := resp["attachmentId"].(string)
	require.NoError(t, svc.UploadAttachment(ctx, testUserID, cipherID, attachmentID,
		bytes.NewReader(blob), int64(len(blob))))

	_, downloadToken, err := svc.AttachmentDownloadToken(ctx, testUserID, cipherID, attachmentID)
	require.NoError(t, err)

	// Token minted for one attachment never opens another path.
	_, _, err = svc.DownloadAttachment(ctx, cipherID, "other-attachment", downloadToken)
	assert.ErrorIs(t, err, ErrInvalidFileToken)

	_, _, err = svc.DownloadAttachment(ctx, cipherID, attachmentID, "garbage-token")
	assert.ErrorIs(t, err, ErrInvalidFileToken)
}
