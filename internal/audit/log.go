package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"documenta.app/internal/auth"
	"documenta.app/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry["user_id"] = userID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

var _ auth.AuditSink = Sink{}

// Sink adapts LogEvent to the auth service's audit contract. Events carry
// email, IP and user agent only; password material never reaches the sink.
type Sink struct{}

func (Sink) LogLogin(ctx context.Context, userID, email string, meta auth.RequestMeta) {
	_ = LogEvent(ctx, "auth.login", map[string]any{
		"user_id":    userID,
		"email":      email,
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
	})
}

func (Sink) LogLoginFailed(ctx context.Context, email string, meta auth.RequestMeta) {
	_ = LogEvent(ctx, "auth.login_failed", map[string]any{
		"email":      email,
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
	})
}

func (Sink) LogPasswordChange(ctx context.Context, userID string, mandatory, success bool, meta auth.RequestMeta) {
	_ = LogEvent(ctx, "auth.password_change", map[string]any{
		"user_id":    userID,
		"mandatory":  mandatory,
		"success":    success,
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
	})
}
