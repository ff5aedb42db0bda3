package logger

import (
	"context"
	"fmt"
	"golang-alerting/pkg/common"
	"golang-alerting/pkg/httpclient"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AlertCore tees log entries flagged with send_alert=true to a webhook.
type AlertCore struct {
	client   httpclient.HTTPClient
	endpoint string
	timeout  time.Duration
	core     zapcore.Core
	minLevel zapcore.Level
}

// AlertPayload is the JSON body posted to the alert webhook.
type AlertPayload struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Logger  string                 `json:"logger,omitempty"`
	Fields  map[string]interface{} `json:"fields"`
	Time    string                 `json:"time"`
}

// WithAlertCore returns a copy of l whose entries at or above minLevel that
// carry AlertField() are also delivered to endpoint.
func WithAlertCore(l *Logger, client httpclient.HTTPClient, endpoint string, minLevel zapcore.Level, timeout time.Duration) *Logger {
	wrapped := l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &AlertCore{
			client:   client,
			endpoint: endpoint,
			timeout:  timeout,
			core:     core,
			minLevel: minLevel,
		}
	}))
	return &Logger{wrapped}
}

// AlertField marks an entry for delivery by AlertCore.
func AlertField() zap.Field {
	return zap.Bool(common.KEY_LOG_HOOK_SEND_ALERT, true)
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		client:   a.client,
		endpoint: a.endpoint,
		timeout:  a.timeout,
		core:     a.core.With(fields),
		minLevel: a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= a.minLevel && shouldSendAlert(fields) {
		go a.sendAlert(entry, fields)
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldSendAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

func buildAlertPayload(entry zapcore.Entry, fields []zapcore.Field) AlertPayload {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
			continue
		}
		f.AddTo(enc)
	}
	return AlertPayload{
		Level:   entry.Level.CapitalString(),
		Message: entry.Message,
		Logger:  entry.LoggerName,
		Fields:  enc.Fields,
		Time:    entry.Time.UTC().Format(time.RFC3339),
	}
}

func (a *AlertCore) sendAlert(entry zapcore.Entry, fields []zapcore.Field) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	// the logger cannot log its own delivery failures without recursing
	resp, err := a.client.Post(ctx, a.endpoint, buildAlertPayload(entry, fields), nil, nil)
	if err != nil || (resp != nil && resp.StatusCode >= 300) {
		fmt.Println("alert delivery failed:", err)
	}
}
