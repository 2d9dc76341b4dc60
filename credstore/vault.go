package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// KeyLen is the exact length, in bytes, of a usable AES_KEY.
const KeyLen = 16

const (
	saltLen      = 16
	nonceLen     = 12
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	argonKeyLen  = 32
)

// DefaultPath is the credential file name used when none is configured.
const DefaultPath = "encrypted_tokens.data"

// ErrEncryptionUnavailable is returned by Save when no valid key is configured.
var ErrEncryptionUnavailable = errors.New("encryption key missing or not 16 bytes")

// Vault reads and writes the encrypted credential file.
//
// File format: salt(16) || nonce(12) || AES-GCM-ciphertext
// Plaintext is JSON: {"<account key>": {<Record>}, ...}
type Vault struct {
	path string
	key  []byte
}

// NewVault creates a vault for path using key. A key that is not exactly
// KeyLen bytes disables persistence: Load yields an empty mapping and Save
// returns ErrEncryptionUnavailable.
func NewVault(path string, key []byte) *Vault {
	if path == "" {
		path = DefaultPath
	}
	v := &Vault{path: path}
	if len(key) == KeyLen {
		v.key = append([]byte(nil), key...)
	}
	return v
}

// Path returns the file location.
func (v *Vault) Path() string { return v.path }

// Enabled reports whether a valid key is configured.
func (v *Vault) Enabled() bool { return v.key != nil }

// Load reads the credential file. The returned mapping is never nil. The
// error is informational: a missing file is not an error, while an
// unreadable, undecryptable or unparsable file is reported so callers can log
// it, but the mapping is still empty and usable.
func (v *Vault) Load() (map[string]Record, error) {
	empty := make(map[string]Record)
	if !v.Enabled() {
		return empty, nil
	}

	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("reading token file: %w", err)
	}

	plaintext, err := decrypt(data, v.key)
	if err != nil {
		return empty, fmt.Errorf("decrypting token file: %w", err)
	}

	records := make(map[string]Record)
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return empty, fmt.Errorf("parsing token file: %w", err)
	}
	return records, nil
}

// Save encrypts records and writes them atomically.
func (v *Vault) Save(records map[string]Record) error {
	if !v.Enabled() {
		return ErrEncryptionUnavailable
	}
	if records == nil {
		records = make(map[string]Record)
	}

	plaintext, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshalling tokens: %w", err)
	}

	ciphertext, err := encrypt(plaintext, v.key)
	if err != nil {
		return err
	}

	// Atomic write: temp file → fsync → rename
	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(ciphertext); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, v.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func deriveKey(key, salt []byte) []byte {
	return argon2.IDKey(key, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func newGCM(key, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(key, salt))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// encrypt produces: salt(16) || nonce(12) || AES-GCM-ciphertext
func encrypt(plaintext, key []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := newGCM(key, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	result := make([]byte, 0, saltLen+nonceLen+len(plaintext)+gcm.Overhead())
	result = append(result, salt...)
	result = append(result, nonce...)
	return gcm.Seal(result, nonce, plaintext, nil), nil
}

// decrypt parses: salt(16) || nonce(12) || AES-GCM-ciphertext
func decrypt(data, key []byte) ([]byte, error) {
	if len(data) < saltLen+nonceLen+1 {
		return nil, fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	salt := data[:saltLen]
	nonce := data[saltLen : saltLen+nonceLen]

	gcm, err := newGCM(key, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[saltLen+nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong key?): %w", err)
	}
	return plaintext, nil
}
