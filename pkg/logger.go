package dusc

type Logger interface {
	Info(message string, module string)
	Error(string)
}

var logger Logger = noopLogger{}

// noopLogger keeps library calls safe before SetLogger runs (and in tests).
type noopLogger struct{}

func (noopLogger) Info(string, string) {}
func (noopLogger) Error(string)        {}

func SetLogger(l Logger) {
	logger = l
}
