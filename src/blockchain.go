package blockchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/common/log"
)

// BlockChain : ordered blocks plus the pool of transactions waiting to be mined
type BlockChain struct {
	mu                  sync.RWMutex
	chain               []*Block
	pendingTransactions []*Transaction

	// serialises MinePendingTransactions so only one block is sealed at a time
	miningMu sync.Mutex

	difficulty        int
	miningReward      float64
	maxMiningAttempts uint64
	clock             func() time.Time
}

// NewBlockChain : Returns a chain holding only the genesis block
func NewBlockChain(cfg Config) *BlockChain {
	blockChain := newBlockChain(cfg)
	blockChain.chain = append(blockChain.chain, GenesisBlock())
	return blockChain
}

// LoadBlockChain restores a chain from existing blocks. Nothing is verified;
// call Verify or IsValid on the result.
func LoadBlockChain(cfg Config, blocks []*Block) (*BlockChain, error) {
	if len(blocks) == 0 {
		return nil, errors.New("cannot load a chain without blocks")
	}
	blockChain := newBlockChain(cfg)
	blockChain.chain = append(blockChain.chain, blocks...)
	return blockChain, nil
}

func newBlockChain(cfg Config) *BlockChain {
	cfg = cfg.withDefaults()
	return &BlockChain{
		chain:               make([]*Block, 0),
		pendingTransactions: make([]*Transaction, 0),
		difficulty:          cfg.Difficulty,
		miningReward:        cfg.MiningReward,
		maxMiningAttempts:   cfg.MaxMiningAttempts,
		clock:               cfg.Clock,
	}
}

// GenesisBlock returns a fresh copy of the fixed first block.
func GenesisBlock() *Block {
	return NewBlock(nil, GenesisTimestamp, GenesisPreviousHash)
}

func (b *BlockChain) Difficulty() int       { return b.difficulty }
func (b *BlockChain) MiningReward() float64 { return b.miningReward }

func (b *BlockChain) LatestBlock() *Block {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chain[len(b.chain)-1]
}

// Blocks returns a snapshot of the chain.
func (b *BlockChain) Blocks() []*Block {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blocks := make([]*Block, len(b.chain))
	copy(blocks, b.chain)
	return blocks
}

func (b *BlockChain) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chain)
}

// Pending returns a snapshot of the pending pool.
func (b *BlockChain) Pending() []*Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyTransactions(b.pendingTransactions)
}

// MinePendingTransactions seals the pending pool plus a reward for
// rewardAddress into a new block. Proof-of-work runs without holding the state
// lock; transactions added meanwhile stay pending. When mining fails or is
// cancelled the chain and pool are left untouched.
func (b *BlockChain) MinePendingTransactions(ctx context.Context, rewardAddress string) (*Block, error) {
	b.miningMu.Lock()
	defer b.miningMu.Unlock()

	now := b.clock()

	b.mu.RLock()
	pending := copyTransactions(b.pendingTransactions)
	previousHash := b.chain[len(b.chain)-1].hash
	b.mu.RUnlock()

	reward := NewRewardAt(rewardAddress, b.miningReward, now)
	block := NewBlock(append(pending, reward), now.UnixMilli(), previousHash)
	if err := block.MineContext(ctx, b.difficulty, b.maxMiningAttempts); err != nil {
		return nil, fmt.Errorf("mine block: %w", err)
	}

	b.mu.Lock()
	b.chain = append(b.chain, block)
	remaining := make([]*Transaction, 0, len(b.pendingTransactions)-len(pending))
	b.pendingTransactions = append(remaining, b.pendingTransactions[len(pending):]...)
	height := len(b.chain) - 1
	b.mu.Unlock()

	log.With("hash", block.hash).With("nonce", block.nonce).
		Infof("Block %d mined with %d transactions", height, len(block.transactions))
	return block, nil
}

// AddTransaction admits a signed transfer to the pending pool. The checks run
// in a fixed order and the first failure is returned with nothing changed.
func (b *BlockChain) AddTransaction(tx *Transaction) error {
	if tx == nil || tx.IsReward() || tx.from == "" || tx.to == "" {
		return ErrMissingAddress
	}
	if err := tx.Validate(); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if math.IsNaN(tx.amount) || tx.amount <= 0 {
		return ErrNonPositiveAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if balance := b.balanceOf(tx.from); balance < tx.amount {
		return fmt.Errorf("%w: balance %s, needs %s", ErrInsufficientFunds, amountText(balance), amountText(tx.amount))
	}
	b.pendingTransactions = append(b.pendingTransactions, tx)

	log.Debugf("Added new transaction %s -> %s: %s", shortAddress(tx.from), shortAddress(tx.to), amountText(tx.amount))
	return nil
}

// BalanceOf replays every confirmed transaction touching address. Pending
// transactions are not counted.
func (b *BlockChain) BalanceOf(address string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceOf(address)
}

func (b *BlockChain) balanceOf(address string) float64 {
	var balance float64
	for _, block := range b.chain {
		for _, tx := range block.transactions {
			if tx.kind == KindTransfer && tx.from == address {
				balance -= tx.amount
			}
			if tx.to == address {
				balance += tx.amount
			}
		}
	}
	return balance
}

// TransactionsFor returns the confirmed transactions sent or received by
// address, in chain order.
func (b *BlockChain) TransactionsFor(address string) []*Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txs := make([]*Transaction, 0)
	for _, block := range b.chain {
		for _, tx := range block.transactions {
			if (tx.kind == KindTransfer && tx.from == address) || tx.to == address {
				txs = append(txs, tx)
			}
		}
	}
	return txs
}

func (b *BlockChain) IsValid() bool {
	return b.Verify() == nil
}

// Verify checks that block 0 is the genesis block and that every block holds
// valid transactions and its own hash. It does not check that previousHash
// links to the preceding block; see VerifyLinkage.
func (b *BlockChain) Verify() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	want, err := GenesisBlock().MarshalJSON()
	if err != nil {
		return err
	}
	got, err := b.chain[0].MarshalJSON()
	if err != nil || !bytes.Equal(want, got) {
		return ErrGenesisMismatch
	}

	for i, block := range b.chain {
		if !block.HasValidTransactions() {
			return fmt.Errorf("block %d: %w", i, ErrInvalidTransactions)
		}
		if block.hash != block.CalculateHash() {
			return fmt.Errorf("block %d: %w", i, ErrHashMismatch)
		}
	}
	return nil
}

// VerifyLinkage checks that every block's previousHash equals the stored hash
// of the block before it.
func (b *BlockChain) VerifyLinkage() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := 1; i < len(b.chain); i++ {
		if b.chain[i].previousHash != b.chain[i-1].hash {
			return fmt.Errorf("block %d: %w", i, ErrBrokenLink)
		}
	}
	return nil
}
