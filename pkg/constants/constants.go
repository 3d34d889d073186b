package constants

type contextKey string

const (
	LoggerKey  contextKey = "logger"
	PoolKey    contextKey = "pool"
	TxKey      contextKey = "tx"
	DatasetKey contextKey = "dataset"
)
