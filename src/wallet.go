package blockchain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds a signing key and the address derived from it.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewWallet generates a fresh secp256k1 key.
func NewWallet() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newWallet(key), nil
}

// WalletFromHex loads a wallet from a hex private key, without 0x prefix.
func WalletFromHex(privateKeyHex string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return newWallet(key), nil
}

func newWallet(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: key, address: AddressOf(&key.PublicKey)}
}

func (w *Wallet) Address() string              { return w.address }
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey { return w.key }

func (w *Wallet) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(w.key))
}

// Transfer builds a transfer from this wallet and signs it.
func (w *Wallet) Transfer(to string, amount float64) (*Transaction, error) {
	tx := NewTransfer(w.address, to, amount)
	if err := tx.Sign(w.key); err != nil {
		return nil, err
	}
	return tx, nil
}

// AddressOf returns the hex encoded uncompressed public key.
func AddressOf(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(pub))
}

// ParseAddress decodes a hex public key, compressed or uncompressed.
func ParseAddress(address string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(address)
	if err != nil {
		return nil, fmt.Errorf("address is not hex: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("address is not a public key: %w", err)
	}
	return pub, nil
}

func shortAddress(address string) string {
	if len(address) > 16 {
		return address[:16] + "…"
	}
	return address
}
