package blockchain

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind tells a mining reward apart from an ordinary transfer.
type Kind int

const (
	KindTransfer Kind = iota
	KindReward
)

func (k Kind) String() string {
	if k == KindReward {
		return "reward"
	}
	return "transfer"
}

// Transaction moves Amount from one address to another. Rewards have no sender
// and are never signed.
type Transaction struct {
	kind      Kind
	from      string
	to        string
	amount    float64
	timestamp int64 // unix millis
	signature string
}

// NewTransfer creates an unsigned transfer stamped with the current time.
// Nothing is validated here; AddTransaction does that.
func NewTransfer(from string, to string, amount float64) *Transaction {
	return NewTransferAt(from, to, amount, time.Now())
}

func NewTransferAt(from string, to string, amount float64, at time.Time) *Transaction {
	return &Transaction{
		kind:      KindTransfer,
		from:      from,
		to:        to,
		amount:    amount,
		timestamp: at.UnixMilli(),
	}
}

// NewReward creates the transaction crediting a miner.
func NewReward(to string, amount float64) *Transaction {
	return NewRewardAt(to, amount, time.Now())
}

func NewRewardAt(to string, amount float64, at time.Time) *Transaction {
	return &Transaction{
		kind:      KindReward,
		to:        to,
		amount:    amount,
		timestamp: at.UnixMilli(),
	}
}

// RestoreTransfer rebuilds a transfer from stored fields as-is. The signature
// is not checked, so the result may well be invalid.
func RestoreTransfer(from string, to string, amount float64, timestamp int64, signature string) *Transaction {
	return &Transaction{
		kind:      KindTransfer,
		from:      from,
		to:        to,
		amount:    amount,
		timestamp: timestamp,
		signature: signature,
	}
}

func (tx *Transaction) Kind() Kind        { return tx.kind }
func (tx *Transaction) IsReward() bool    { return tx.kind == KindReward }
func (tx *Transaction) From() string      { return tx.from }
func (tx *Transaction) To() string        { return tx.to }
func (tx *Transaction) Amount() float64   { return tx.amount }
func (tx *Transaction) Timestamp() int64  { return tx.timestamp }
func (tx *Transaction) Signature() string { return tx.signature }

// Hash returns the hex digest of from, to, amount and timestamp concatenated
// as text with no separators.
func (tx *Transaction) Hash() string {
	digest := tx.digest()
	return hex.EncodeToString(digest[:])
}

func (tx *Transaction) digest() [32]byte {
	// A reward's missing sender renders as null, matching the JSON form.
	from := "null"
	if tx.kind == KindTransfer {
		from = tx.from
	}
	data := from + tx.to + amountText(tx.amount) + strconv.FormatInt(tx.timestamp, 10)
	return sha256.Sum256([]byte(data))
}

// Sign signs the transaction digest with key. The key's address must be the
// sender.
func (tx *Transaction) Sign(key *ecdsa.PrivateKey) error {
	if key == nil || tx.kind == KindReward || AddressOf(&key.PublicKey) != tx.from {
		return ErrWrongSigningKey
	}
	if tx.signature != "" {
		return ErrAlreadySigned
	}

	priv := secp256k1.PrivKeyFromBytes(crypto.FromECDSA(key))
	digest := tx.digest()
	sig := dcrecdsa.Sign(priv, digest[:])
	tx.signature = hex.EncodeToString(sig.Serialize())
	return nil
}

// Validate reports nil for rewards and for transfers whose signature verifies
// against the sender address.
func (tx *Transaction) Validate() error {
	if tx.kind == KindReward {
		return nil
	}
	if tx.signature == "" {
		return ErrUnsignedTransaction
	}

	pub, err := ParseAddress(tx.from)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	der, err := hex.DecodeString(tx.signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex: %v", ErrInvalidSignature, err)
	}
	sig, err := dcrecdsa.ParseDERSignature(der)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest := tx.digest()
	if !sig.Verify(digest[:], pub) {
		return fmt.Errorf("%w: signature does not match sender %s", ErrInvalidSignature, shortAddress(tx.from))
	}
	return nil
}

func (tx *Transaction) IsValid() bool {
	return tx.Validate() == nil
}

type wireTransaction struct {
	From      *string    `json:"from"`
	To        string     `json:"to"`
	Amount    wireAmount `json:"amount"`
	Timestamp int64      `json:"timestamp"`
	Signature string     `json:"signature,omitempty"`
}

// MarshalJSON writes the canonical form that block hashes are computed over.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	w := wireTransaction{
		To:        tx.to,
		Amount:    wireAmount(tx.amount),
		Timestamp: tx.timestamp,
		Signature: tx.signature,
	}
	if tx.kind == KindTransfer {
		from := tx.from
		w.From = &from
	}
	return canonicalJSON(w)
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*tx = Transaction{
		kind:      KindReward,
		to:        w.To,
		amount:    float64(w.Amount),
		timestamp: w.Timestamp,
		signature: w.Signature,
	}
	if w.From != nil {
		tx.kind = KindTransfer
		tx.from = *w.From
	}
	return nil
}

// wireAmount encodes like a JavaScript number; non-finite values become null.
type wireAmount float64

func (a wireAmount) MarshalJSON() ([]byte, error) {
	v := float64(a)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(amountText(v)), nil
}

func (a *wireAmount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = wireAmount(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = wireAmount(v)
	return nil
}

// amountText formats v the way JavaScript stringifies numbers.
func amountText(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}

	abs := math.Abs(v)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, v, format, -1, 64)
	if format == 'e' {
		// e-07 => e-7
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return string(b)
}

func canonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
