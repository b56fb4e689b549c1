package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
)

// SealedExt is appended to the name of an encrypted snapshot.
const SealedExt = ".enc"

const (
	sealMagic  = "CDRUNS01"
	saltLength = 32
	keyLength  = 32 // AES-256
)

// ErrWrongPassword is returned when a sealed snapshot fails authentication.
var ErrWrongPassword = errors.New("wrong password or corrupted backup")

// KDFParams are the Argon2id parameters used to derive the sealing key.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams follows the RFC 9106 second recommended option.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

func (p KDFParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keyLength)
}

// seal encrypts plaintext with AES-256-GCM. Layout: salt | nonce | ciphertext.
func seal(plaintext []byte, password string, params KDFParams) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(params.key(password, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

func unseal(data []byte, password string, params KDFParams) ([]byte, error) {
	if len(data) < saltLength {
		return nil, fmt.Errorf("sealed data too short")
	}
	salt, data := data[:saltLength], data[saltLength:]

	gcm, err := newGCM(params.key(password, salt))
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("sealed data too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SealBackup encrypts the snapshot at path into path+SealedExt and removes
// the plaintext file.
func SealBackup(path, password string, params KDFParams) (string, error) {
	if password == "" {
		return "", fmt.Errorf("a password is required to seal a backup")
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read backup: %w", err)
	}

	sealed, err := seal(plaintext, password, params)
	if err != nil {
		return "", err
	}

	dest := path + SealedExt
	if err := os.WriteFile(dest, append([]byte(sealMagic), sealed...), 0o600); err != nil {
		return "", fmt.Errorf("failed to write sealed backup: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove plaintext backup: %w", err)
	}
	return dest, nil
}

// UnsealBackup decrypts a sealed snapshot into dest. An empty dest strips
// SealedExt from src.
func UnsealBackup(src, dest, password string, params KDFParams) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read sealed backup: %w", err)
	}
	if !strings.HasPrefix(string(data[:min(len(data), len(sealMagic))]), sealMagic) {
		return "", fmt.Errorf("%s is not a sealed backup", src)
	}

	plaintext, err := unseal(data[len(sealMagic):], password, params)
	if err != nil {
		return "", err
	}

	if dest == "" {
		dest = strings.TrimSuffix(src, SealedExt)
		if dest == src {
			dest = src + ".db"
		}
	}
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%s already exists", dest)
	}
	if err := os.WriteFile(dest, plaintext, 0o600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return dest, nil
}

// IsSealed reports whether the file at path starts with the sealed header.
func IsSealed(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(sealMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n == len(sealMagic) && string(header) == sealMagic, nil
}
