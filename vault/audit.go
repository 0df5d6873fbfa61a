package vault

import (
	"context"
	"log/slog"
)

// Event identifies a lifecycle action in the manager's log output.
type Event string

const (
	EventVaultCreated      Event = "vault_created"
	EventVaultUnlocked     Event = "vault_unlocked"
	EventUnlockFailed      Event = "unlock_failed"
	EventCreateConflict    Event = "create_conflict"
	EventPassphraseChanged Event = "passphrase_changed"
	EventPassphraseRefused Event = "passphrase_refused"
	EventChangeConflict    Event = "change_conflict"
)

// opLogger tags every entry of one manager call with the same operation ID.
// Passphrases, mnemonics, peppers and keys are never passed to it.
type opLogger struct {
	logger *slog.Logger
	attrs  []slog.Attr
}

func newOpLogger(logger *slog.Logger, opID, userID, vaultName string) *opLogger {
	return &opLogger{
		logger: logger,
		attrs: []slog.Attr{
			slog.String("op_id", opID),
			slog.String("user_id", userID),
			slog.String("vault", vaultName),
		},
	}
}

func (l *opLogger) event(ctx context.Context, event Event, extra ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, event, extra...)
}

func (l *opLogger) failure(ctx context.Context, event Event, err error, extra ...slog.Attr) {
	l.log(ctx, slog.LevelWarn, event, append(extra, slog.String("error", err.Error()))...)
}

func (l *opLogger) log(ctx context.Context, level slog.Level, event Event, extra ...slog.Attr) {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(extra)+1)
	attrs = append(attrs, slog.String("event", string(event)))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, extra...)
	l.logger.LogAttrs(ctx, level, "vault", attrs...)
}
