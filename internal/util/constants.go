package util

// Trading sanity thresholds used to reject corrupt market data and requests

const (
	// MaxReasonablePrice is the largest price accepted from a market data source
	MaxReasonablePrice = 1e12

	// MaxReasonableInvestment caps the investment accepted on bot creation
	MaxReasonableInvestment = 1e12

	// MaxGridLevels bounds the number of grid levels a bot may configure
	MaxGridLevels = 200

	// DustAmount is the smallest trade quantity recorded by the ledger
	DustAmount = 1e-12
)
