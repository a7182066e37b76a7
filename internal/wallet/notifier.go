package wallet

import "go.uber.org/zap"

// Notifier receives short user-facing messages about wallet outcomes
type Notifier interface {
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to a zap logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs through logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Success(msg string) { n.logger.Info(msg) }
func (n *LogNotifier) Warn(msg string)    { n.logger.Warn(msg) }
func (n *LogNotifier) Error(msg string)   { n.logger.Error(msg) }
