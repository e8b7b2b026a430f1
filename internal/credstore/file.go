package credstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// File layout: magic(4) | version(1) | salt(16) | nonce(24) | sealed JSON.
const (
	fileMagic   = "PSPT"
	fileVersion = byte(1)
	saltLen     = 16
)

// Argon2id parameters for deriving the sealing key from the passphrase.
// Tuned for interactive use on client hardware.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// ErrPassphraseRequired is returned by NewFile for an empty passphrase.
var ErrPassphraseRequired = errors.New("credstore: passphrase required")

type filePayload struct {
	RefreshToken string `json:"refresh_token"`
	ExpiresAtMS  int64  `json:"expires_at_ms"`
}

// File is a Store sealed on disk with a passphrase-derived key.
//
// The credential is serialized to JSON and sealed with XChaCha20-Poly1305;
// the key is derived with Argon2id from the passphrase and a per-write random
// salt. Writes go through a temp file and rename so a crash mid-save never
// leaves a torn credential behind.
type File struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

// NewFile returns a file store at path sealed with passphrase. The file is
// created lazily on the first Save.
func NewFile(path string, passphrase []byte) (*File, error) {
	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}
	if path == "" {
		return nil, fmt.Errorf("credstore: path required")
	}
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &File{path: path, passphrase: p}, nil
}

func (f *File) sealKey(salt []byte) []byte {
	return argon2.IDKey(f.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Save seals and writes the credential atomically.
func (f *File) Save(_ context.Context, cred Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	plain, err := json.Marshal(filePayload{
		RefreshToken: cred.RefreshToken,
		ExpiresAtMS:  cred.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("credstore: marshal: %w", err)
	}

	salt := make([]byte, saltLen)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("credstore: salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credstore: nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(f.sealKey(salt))
	if err != nil {
		return fmt.Errorf("credstore: seal: %w", err)
	}

	buf := make([]byte, 0, len(fileMagic)+1+saltLen+len(nonce)+len(plain)+aead.Overhead())
	buf = append(buf, fileMagic...)
	buf = append(buf, fileVersion)
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = aead.Seal(buf, nonce, plain, []byte(fileMagic))

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load opens and unseals the credential file. Any failure (missing file,
// wrong passphrase, corruption) reports absent.
func (f *File) Load(_ context.Context) (Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf, err := os.ReadFile(f.path)
	if err != nil {
		return Credential{}, false
	}

	header := len(fileMagic) + 1 + saltLen + chacha20poly1305.NonceSizeX
	if len(buf) < header || string(buf[:len(fileMagic)]) != fileMagic || buf[len(fileMagic)] != fileVersion {
		return Credential{}, false
	}
	salt := buf[len(fileMagic)+1 : len(fileMagic)+1+saltLen]
	nonce := buf[len(fileMagic)+1+saltLen : header]

	aead, err := chacha20poly1305.NewX(f.sealKey(salt))
	if err != nil {
		return Credential{}, false
	}
	plain, err := aead.Open(nil, nonce, buf[header:], []byte(fileMagic))
	if err != nil {
		return Credential{}, false
	}

	var p filePayload
	if err := json.Unmarshal(plain, &p); err != nil || p.RefreshToken == "" {
		return Credential{}, false
	}
	return Credential{
		RefreshToken: p.RefreshToken,
		ExpiresAt:    time.UnixMilli(p.ExpiresAtMS),
	}, true
}

// Clear deletes the credential file.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
