package ports

// Logger defines the interface for logging.
// args are slog-style alternating keys and values.
//
//go:generate mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	// Error logs an error together with its cause chain.
	Error(err error)
}
