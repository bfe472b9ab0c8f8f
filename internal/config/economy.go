package config

import (
	"github.com/spf13/viper"
)

// EconomyConfig holds the coin and reputation constants of the economy.
type EconomyConfig struct {
	ExecuteThreshold        int64
	CancelThreshold         int64
	ReviewFee               int64
	VoteCost                int64
	NegativeStakeMultiplier int64
	AuthorReputationReward  int64
	CriticReputationReward  int64
	DefaultVotesRequired    int64
}

func setEconomyDefaults() {
	viper.SetDefault("economy.execute_threshold", 50)
	viper.SetDefault("economy.cancel_threshold", 30)
	viper.SetDefault("economy.review_fee", 200)
	viper.SetDefault("economy.vote_cost", 1)
	viper.SetDefault("economy.negative_stake", 10)
	viper.SetDefault("economy.author_rep_reward", 5)
	viper.SetDefault("economy.critic_rep_reward", 1)
	viper.SetDefault("economy.default_votes_required", 1000)
}

func LoadEconomyConfig() *EconomyConfig {
	setEconomyDefaults()
	return &EconomyConfig{
		ExecuteThreshold:        positive(viper.GetInt64("economy.execute_threshold"), 50),
		CancelThreshold:         positive(viper.GetInt64("economy.cancel_threshold"), 30),
		ReviewFee:               viper.GetInt64("economy.review_fee"),
		VoteCost:                viper.GetInt64("economy.vote_cost"),
		NegativeStakeMultiplier: viper.GetInt64("economy.negative_stake"),
		AuthorReputationReward:  viper.GetInt64("economy.author_rep_reward"),
		CriticReputationReward:  viper.GetInt64("economy.critic_rep_reward"),
		DefaultVotesRequired:    positive(viper.GetInt64("economy.default_votes_required"), 1000),
	}
}

// DefaultEconomy is the stock economy, used by tests and the memory driver.
func DefaultEconomy() *EconomyConfig {
	return &EconomyConfig{
		ExecuteThreshold:        50,
		CancelThreshold:         30,
		ReviewFee:               200,
		VoteCost:                1,
		NegativeStakeMultiplier: 10,
		AuthorReputationReward:  5,
		CriticReputationReward:  1,
		DefaultVotesRequired:    1000,
	}
}

// thresholds below one would settle a review on creation
func positive(v, fallback int64) int64 {
	if v < 1 {
		return fallback
	}
	return v
}
