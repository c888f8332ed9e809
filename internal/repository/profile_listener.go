package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ProfileChangesChannel はprofiles更新時にトリガーがNOTIFYするチャネル名。
const ProfileChangesChannel = "profile_changes"

// ProfileChangeSink はプロフィール変更通知の受け手。
type ProfileChangeSink interface {
	// NotifyUser は指定ユーザーのプロフィールが変更されたことを通知する。
	NotifyUser(userID string)
	// NotifyAll は通知を取りこぼした可能性があるときに全ユーザー分の再解決を要求する。
	NotifyAll()
}

// notificationSource はpq.Listenerのうち購読に必要な操作。
type notificationSource interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// ProfileListener はPostgreSQLのLISTEN/NOTIFYでプロフィール変更を受信する。
// 管理者によるロール変更などを、サインイン中のセッションに反映するために使う。
type ProfileListener struct {
	source       notificationSource
	logger       *slog.Logger
	pingInterval time.Duration
}

// NewProfileListener はデータベースURLからProfileListenerを生成する。
func NewProfileListener(databaseURL string, logger *slog.Logger) *ProfileListener {
	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("profile listener connection event",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		},
	)
	return newProfileListener(listener, logger, 90*time.Second)
}

func newProfileListener(source notificationSource, logger *slog.Logger, pingInterval time.Duration) *ProfileListener {
	return &ProfileListener{
		source:       source,
		logger:       logger,
		pingInterval: pingInterval,
	}
}

// Run はコンテキストがキャンセルされるまで通知を受信し、sinkに配送する。
// 再接続直後（nil通知）は取りこぼしの可能性があるためNotifyAllを呼ぶ。
func (l *ProfileListener) Run(ctx context.Context, sink ProfileChangeSink) error {
	defer l.source.Close()
	if err := l.source.Listen(ProfileChangesChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ProfileChangesChannel, err)
	}

	l.logger.Info("profile listener started", slog.String("channel", ProfileChangesChannel))

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	notifications := l.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("profile listener stopped")
			return nil
		case n, ok := <-notifications:
			if !ok {
				return fmt.Errorf("profile listener channel closed")
			}
			if n == nil {
				l.logger.Warn("profile listener reconnected, resyncing all sessions")
				sink.NotifyAll()
				continue
			}
			sink.NotifyUser(n.Extra)
		case <-ticker.C:
			if err := l.source.Ping(); err != nil {
				l.logger.Warn("profile listener ping failed", slog.String("error", err.Error()))
			}
		}
	}
}
