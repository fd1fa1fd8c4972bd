// Package wallet holds the account used to sign protocol writes.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
)

// Wallet is an in-memory secp256k1 key.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromHex builds a wallet from a 32 byte private key in hex, with or without 0x.
func FromHex(privKeyHex string) (*Wallet, error) {
	b, err := hexToBytesStrict(strings.TrimSpace(privKeyHex))
	if err != nil {
		return nil, err
	}
	k, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("to ecdsa: %w", err)
	}
	return FromKey(k), nil
}

// FromKey wraps an existing key.
func FromKey(k *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: k, address: crypto.PubkeyToAddress(k.PublicKey)}
}

func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) SignHash(ctx context.Context, digest32 []byte) ([]byte, error) {
	_ = ctx // keeps the signer interface symmetric with remote signers

	if len(digest32) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest32))
	}
	return crypto.Sign(digest32, w.key) // returns V=0/1
}

// Load resolves the signing key, in order: the environment, the encrypted
// keystore at keystorePath, then an interactive prompt when stdin is a
// terminal. A key entered at the prompt can be saved to keystorePath.
// It returns (nil, nil) when nothing is available, which puts the client in
// read-only mode.
func Load(keystorePath string) (*Wallet, error) {
	if raw := os.Getenv(constants.EnvPrivateKey); strings.TrimSpace(raw) != "" {
		return FromHex(raw)
	}

	_, statErr := os.Stat(keystorePath)
	haveKeystore := keystorePath != "" && statErr == nil

	if !isTerminal() {
		log.Warn("no private key configured, running read-only",
			"env", constants.EnvPrivateKey, "keystore", keystorePath)
		return nil, nil
	}

	if haveKeystore {
		pass, err := PromptPassphrase("Keystore passphrase: ")
		if err != nil {
			return nil, err
		}
		defer zeroBytes(pass)
		return OpenKeystore(keystorePath, pass)
	}

	raw, err := PromptPrivateKey()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		log.Warn("no private key entered, running read-only")
		return nil, nil
	}
	w, err := FromHex(raw)
	if err != nil {
		return nil, err
	}

	if keystorePath == "" {
		return w, nil
	}
	pass, err := PromptPassphrase("Passphrase to save this key (empty to skip): ")
	if err != nil {
		return nil, err
	}
	defer zeroBytes(pass)
	if len(pass) == 0 {
		return w, nil
	}
	if err := SaveKeystore(keystorePath, w, pass); err != nil {
		log.Warn("failed to save keystore", "path", keystorePath, "error", err)
		return w, nil
	}
	log.Info("keystore saved", "path", keystorePath, "address", w.Address().Hex())
	return w, nil
}

func hexToBytesStrict(hexStr string) ([]byte, error) {
	if len(hexStr) == 0 {
		return nil, errors.New("empty hex string")
	}
	if len(hexStr) >= 2 && (hexStr[0:2] == "0x" || hexStr[0:2] == "0X") {
		hexStr = hexStr[2:]
	}
	// must be 32 bytes for secp256k1 private key
	if len(hexStr) != 64 {
		return nil, fmt.Errorf("invalid privkey hex length: got %d want 64", len(hexStr))
	}
	out := make([]byte, 32)
	for i := 0; i < 32; i++ {
		hi, ok := fromHexChar(hexStr[i*2])
		if !ok {
			return nil, fmt.Errorf("invalid hex char at %d", i*2)
		}
		lo, ok := fromHexChar(hexStr[i*2+1])
		if !ok {
			return nil, fmt.Errorf("invalid hex char at %d", i*2+1)
		}
		out[i] = (hi << 4) | lo
	}
	return out, nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
