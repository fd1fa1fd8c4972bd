package wallet

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
)

// ErrWrongPassphrase is returned when the keystore cannot be decrypted.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")

const (
	keystoreVersion = 1
	keystoreAAD     = "nexuslend:keystore:v1:"
)

// kdfParams are the Argon2id settings stored next to the ciphertext.
type kdfParams struct {
	Time    uint32 `json:"argon_time"`
	Memory  uint32 `json:"argon_memory_kib"`
	Threads uint8  `json:"argon_threads"`
	KeyLen  uint32 `json:"argon_key_len"`
}

var defaultKDF = kdfParams{
	Time:    2,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
}

// keystoreFile is the on-disk envelope: XChaCha20-Poly1305 over the raw
// private key, bound to the account address through the AAD.
type keystoreFile struct {
	Version  int       `json:"version"`
	Address  string    `json:"address"`
	KDF      kdfParams `json:"kdf"`
	SaltB64  string    `json:"salt_b64"`
	NonceB64 string    `json:"nonce_b64"`
	CTB64    string    `json:"ct_b64"`
}

// SaveKeystore encrypts w's key with passphrase and writes it atomically.
func SaveKeystore(path string, w *Wallet, passphrase []byte) error {
	return saveKeystore(path, w, passphrase, defaultKDF)
}

func saveKeystore(path string, w *Wallet, passphrase []byte, kdf kdfParams) error {
	if len(passphrase) == 0 {
		return errors.New("keystore passphrase is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("rand nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(argon2.IDKey(passphrase, salt, kdf.Time, kdf.Memory, kdf.Threads, kdf.KeyLen))
	if err != nil {
		return fmt.Errorf("aead: %w", err)
	}

	plain := crypto.FromECDSA(w.key)
	defer zeroBytes(plain)

	addr := w.Address().Hex()
	out := keystoreFile{
		Version:  keystoreVersion,
		Address:  addr,
		KDF:      kdf,
		SaltB64:  base64.StdEncoding.EncodeToString(salt),
		NonceB64: base64.StdEncoding.EncodeToString(nonce),
		CTB64:    base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, []byte(keystoreAAD+addr))),
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}
	return atomicWriteFile(path, b, constants.FilePerm)
}

// OpenKeystore decrypts the keystore at path.
func OpenKeystore(path string, passphrase []byte) (*Wallet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	var ks keystoreFile
	if err := json.Unmarshal(b, &ks); err != nil {
		return nil, fmt.Errorf("unmarshal keystore: %w", err)
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %d", ks.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(ks.SaltB64)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(ks.NonceB64)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(ks.CTB64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(argon2.IDKey(passphrase, salt, ks.KDF.Time, ks.KDF.Memory, ks.KDF.Threads, ks.KDF.KeyLen))
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ct, []byte(keystoreAAD+ks.Address))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	defer zeroBytes(plain)

	k, err := crypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("to ecdsa: %w", err)
	}
	w := FromKey(k)
	if !strings.EqualFold(w.Address().Hex(), common.HexToAddress(ks.Address).Hex()) {
		return nil, ErrWrongPassphrase
	}
	return w, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
