package blockchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/common/log"
)

// MaxDifficulty is the number of hex characters in a block hash.
const MaxDifficulty = sha256.Size * 2

// how many nonces are tried between context checks
const ctxCheckInterval = 1024

type Block struct {
	transactions []*Transaction
	timestamp    int64 // unix millis
	previousHash string
	nonce        int
	hash         string
}

// NewBlock builds an unmined block with nonce 0 and its hash computed.
func NewBlock(transactions []*Transaction, timestamp int64, previousHash string) *Block {
	block := &Block{
		transactions: copyTransactions(transactions),
		timestamp:    timestamp,
		previousHash: previousHash,
	}
	block.hash = block.CalculateHash()
	return block
}

// RestoreBlock rebuilds a block from stored fields, keeping hash verbatim even
// when it disagrees with the contents.
func RestoreBlock(transactions []*Transaction, timestamp int64, previousHash string, nonce int, hash string) *Block {
	return &Block{
		transactions: copyTransactions(transactions),
		timestamp:    timestamp,
		previousHash: previousHash,
		nonce:        nonce,
		hash:         hash,
	}
}

func copyTransactions(transactions []*Transaction) []*Transaction {
	out := make([]*Transaction, len(transactions))
	copy(out, transactions)
	return out
}

func (b *Block) Hash() string         { return b.hash }
func (b *Block) PreviousHash() string { return b.previousHash }
func (b *Block) Timestamp() int64     { return b.timestamp }
func (b *Block) Nonce() int           { return b.nonce }

func (b *Block) Transactions() []*Transaction {
	return copyTransactions(b.transactions)
}

// CalculateHash recomputes the digest of previousHash, timestamp, the
// canonical JSON of the transactions and the nonce.
func (b *Block) CalculateHash() string {
	txs, err := canonicalJSON(b.transactions)
	if err != nil {
		// Only reachable through a broken Marshaler; the block can never verify.
		log.Errorf("Unable to serialize block transactions: %s", err)
		return ""
	}

	h := sha256.New()
	h.Write([]byte(b.previousHash))
	h.Write([]byte(strconv.FormatInt(b.timestamp, 10)))
	h.Write(txs)
	h.Write([]byte(strconv.Itoa(b.nonce)))
	return hex.EncodeToString(h.Sum(nil))
}

// Mine searches for a nonce giving the hash difficulty leading zeros. It
// blocks until one is found.
func (b *Block) Mine(difficulty int) {
	if err := b.MineContext(context.Background(), difficulty, 0); err != nil {
		log.Warnf("Mining stopped: %s", err)
	}
}

// MineContext is Mine with cancellation and an optional cap on the number of
// hashes tried (0 means unlimited). The block stays self-consistent when it
// returns early.
func (b *Block) MineContext(ctx context.Context, difficulty int, maxAttempts uint64) error {
	if difficulty > MaxDifficulty {
		return fmt.Errorf("%w: %d > %d", ErrDifficultyOutOfRange, difficulty, MaxDifficulty)
	}
	if difficulty < 0 {
		difficulty = 0
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	target := strings.Repeat("0", difficulty)

	var attempts uint64
	for !strings.HasPrefix(b.hash, target) {
		if maxAttempts > 0 && attempts >= maxAttempts {
			return fmt.Errorf("%w: %d", ErrMiningAborted, maxAttempts)
		}
		if attempts > 0 && attempts%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		b.nonce++
		b.hash = b.CalculateHash()
		attempts++
	}

	log.Debugf("Block mined with nonce %d after %d attempts: %s", b.nonce, attempts, b.hash)
	return nil
}

// HasValidTransactions reports whether every contained transaction is valid.
func (b *Block) HasValidTransactions() bool {
	for _, tx := range b.transactions {
		if !tx.IsValid() {
			return false
		}
	}
	return true
}

type wireBlock struct {
	Transactions []*Transaction `json:"transactions"`
	Timestamp    int64          `json:"timestamp"`
	PreviousHash string         `json:"previousHash"`
	Nonce        int            `json:"nonce"`
	Hash         string         `json:"hash"`
}

func (b *Block) MarshalJSON() ([]byte, error) {
	return canonicalJSON(wireBlock{
		Transactions: b.transactions,
		Timestamp:    b.timestamp,
		PreviousHash: b.previousHash,
		Nonce:        b.nonce,
		Hash:         b.hash,
	})
}

// UnmarshalJSON restores the stored fields without recomputing the hash.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = *RestoreBlock(w.Transactions, w.Timestamp, w.PreviousHash, w.Nonce, w.Hash)
	return nil
}
