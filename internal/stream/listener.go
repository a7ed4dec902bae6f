package stream

import (
	"context"
	"time"

	"worklink_backend/internal/logger"

	"github.com/jackc/pgx/v5"
)

// Listener держит выделенное соединение с Postgres в режиме LISTEN
// и публикует разобранные события в Dispatcher.
// Обрыв соединения невидим для сторов: Listener сам переподключается
// с паузой, доставка может молча прерваться и возобновиться.
type Listener struct {
	dsn        string
	channel    string
	dispatcher *Dispatcher
	reconnect  time.Duration
}

func NewListener(dsn, channel string, dispatcher *Dispatcher, reconnect time.Duration) *Listener {
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	return &Listener{
		dsn:        dsn,
		channel:    channel,
		dispatcher: dispatcher,
		reconnect:  reconnect,
	}
}

// Run блокирует до отмены контекста.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream listener disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}

	logger.Info("stream listener connected", "channel", l.channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		ev, err := ParseEvent([]byte(notification.Payload))
		if err != nil {
			// Кривой пейлоад не валит листенер
			logger.StreamLog("", "", err)
			continue
		}

		logger.StreamLog(ev.Table, ev.Op, nil)
		l.dispatcher.Publish(ev)
	}
}
