package config

// Config holds every runtime knob the engine boots with (spec §2, §6).
type Config struct {
	Port int

	// Persistence
	SQLitePath string

	// Operator interlock (spec §6)
	LockfilePath string

	// Bus
	NATSURL            string
	ConsumerStream     string
	ConsumerDurable    string
	MaxDeliver         int
	AckWaitMillis      int64

	// Pipeline timing (spec §4.10)
	FreshnessWindowMillis int64

	// Replay / aggregation window (spec §4.11)
	AggregationWindowMillis int64

	// Trade history ring size (spec §3)
	TradeHistoryRetain int

	// Risk policy document
	RiskPolicyPath string

	// Rate limiting (spec §4)
	RateLimitPerSec float64
	RateLimitBurst  int

	// Fees (spec §4.5)
	MakerFeePct        float64
	TakerFeePct        float64
	MinProfitMarginPct float64
	ChaseTimeoutMillis int64

	// Envelope verification (spec §4.8)
	HMACSecret          string
	EnvelopeToleranceMs int64
}

// Load reads the process env and returns a Config with the engine's
// defaults, in the teacher's loadConfigFromEnv idiom.
func Load() Config {
	return Config{
		Port:                    getEnvInt("PORT", 8080),
		SQLitePath:              getEnv("SQLITE_PATH", "./execution.db"),
		LockfilePath:            getEnv("ARMED_LOCKFILE", "./execution.armed"),
		NATSURL:                 getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		ConsumerStream:          getEnv("CONSUMER_STREAM", "TITAN_EXEC"),
		ConsumerDurable:         getEnv("CONSUMER_DURABLE", "execution-core"),
		MaxDeliver:              getEnvInt("MAX_DELIVER", 5),
		AckWaitMillis:           getEnvInt64("ACK_WAIT_MS", 30_000),
		FreshnessWindowMillis:   getEnvInt64("FRESHNESS_WINDOW_MS", 5_000),
		AggregationWindowMillis: getEnvInt64("AGGREGATION_WINDOW_MS", 60_000),
		TradeHistoryRetain:      getEnvInt("TRADE_HISTORY_RETAIN", 1000),
		RiskPolicyPath:          getEnv("RISK_POLICY_PATH", "./risk_policy.yaml"),
		RateLimitPerSec:         getEnvFloat("RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:          getEnvInt("RATE_LIMIT_BURST", 20),
		MakerFeePct:             getEnvFloat("MAKER_FEE_PCT", 0.01),
		TakerFeePct:             getEnvFloat("TAKER_FEE_PCT", 0.05),
		MinProfitMarginPct:      getEnvFloat("MIN_PROFIT_MARGIN_PCT", 0.02),
		ChaseTimeoutMillis:      getEnvInt64("CHASE_TIMEOUT_MS", 8_000),
		HMACSecret:              getEnv("HMAC_SECRET", ""),
		EnvelopeToleranceMs:     getEnvInt64("ENVELOPE_TOLERANCE_MS", 300_000),
	}
}
