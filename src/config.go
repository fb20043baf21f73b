package blockchain

import "time"

const (
	DefaultDifficulty   = 2
	DefaultMiningReward = 100
)

// GenesisTimestamp is 2021-03-24T00:00:00Z in unix millis.
const GenesisTimestamp int64 = 1616544000000

// GenesisPreviousHash is the root value the genesis block links to.
const GenesisPreviousHash = "0"

// Config holds the chain parameters.
type Config struct {
	Difficulty   int
	MiningReward float64
	// MaxMiningAttempts caps a single proof-of-work search, 0 means no cap.
	MaxMiningAttempts uint64
	// Clock stamps mined blocks and reward transactions.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Difficulty:   DefaultDifficulty,
		MiningReward: DefaultMiningReward,
		Clock:        time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.Difficulty < 0 {
		c.Difficulty = 0
	}
	if c.Difficulty > MaxDifficulty {
		c.Difficulty = MaxDifficulty
	}
	if !(c.MiningReward > 0) {
		c.MiningReward = DefaultMiningReward
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
