package blockchain

import "errors"

// Admission and signing errors.
var (
	ErrMissingAddress      = errors.New("missing from or to address")
	ErrInvalidSignature    = errors.New("invalid transaction signature")
	ErrUnsignedTransaction = errors.New("transaction is not signed")
	ErrWrongSigningKey     = errors.New("cannot sign transactions with other wallets")
	ErrAlreadySigned       = errors.New("transaction is already signed")
	ErrNonPositiveAmount   = errors.New("amount must be a positive number")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

// Mining errors.
var (
	ErrMiningAborted        = errors.New("mining aborted after max attempts")
	ErrDifficultyOutOfRange = errors.New("difficulty out of range")
)

// Chain verification errors, only reported by Verify and VerifyLinkage.
var (
	ErrGenesisMismatch     = errors.New("genesis block mismatch")
	ErrInvalidTransactions = errors.New("block contains invalid transactions")
	ErrHashMismatch        = errors.New("stored hash does not match recomputed hash")
	ErrBrokenLink          = errors.New("previous hash does not match preceding block")
)
