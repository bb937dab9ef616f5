// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/store/audit"
	"github.com/dalemusser/coderoom/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (register, login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Collab controls logging for collaboration and video session events.
	// Same values as Auth.
	Collab string
}

// Logger writes audit events to MongoDB (via audit.Store) and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case "db"
// destinations are skipped.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.ProjectID != nil {
		fields = append(fields, zap.String("project_id", event.ProjectID.Hex()))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryCollab, audit.CategoryVideo:
		setting = l.config.Collab
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// Registered logs a new account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventRegistered,
		UserID:    &userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"username": username},
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"username": username},
	})
}

// LoginFailedUserNotFound logs a login for an unknown username.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attempted string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_username": attempted},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "wrong password",
		Details:       map[string]string{"username": username},
	})
}

// LoginFailedRateLimit logs a login refused by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, username, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "rate limit exceeded",
		Details: map[string]string{
			"username":   username,
			"limit_type": limitType,
		},
	})
}

// Logout logs a user logout. userIDStr comes from the session user.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// --- Collaboration Events ---

// CollabRequested logs a collaboration request from requester to the
// project owner.
func (l *Logger) CollabRequested(ctx context.Context, projectID, requester, owner primitive.ObjectID, invitationID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCollab,
		EventType: audit.EventCollabRequested,
		ProjectID: &projectID,
		UserID:    &owner,
		ActorID:   &requester,
		Success:   true,
		Details:   map[string]string{"invitation_id": invitationID},
	})
}

// CollabAccepted logs the owner accepting user.
func (l *Logger) CollabAccepted(ctx context.Context, projectID, owner, user primitive.ObjectID) {
	l.collabDecision(ctx, audit.EventCollabAccepted, projectID, owner, user)
}

// CollabDeclined logs the owner declining user.
func (l *Logger) CollabDeclined(ctx context.Context, projectID, owner, user primitive.ObjectID) {
	l.collabDecision(ctx, audit.EventCollabDeclined, projectID, owner, user)
}

// CollabJoined logs a user who became a collaborator by joining the room.
func (l *Logger) CollabJoined(ctx context.Context, projectID, user primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCollab,
		EventType: audit.EventCollabJoined,
		ProjectID: &projectID,
		UserID:    &user,
		ActorID:   &user,
		Success:   true,
	})
}

func (l *Logger) collabDecision(ctx context.Context, eventType string, projectID, owner, user primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCollab,
		EventType: eventType,
		ProjectID: &projectID,
		UserID:    &user,
		ActorID:   &owner,
		Success:   true,
	})
}

// --- Video Events ---

// VideoStarted logs the owner starting a video session.
func (l *Logger) VideoStarted(ctx context.Context, projectID, owner primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryVideo,
		EventType: audit.EventVideoStarted,
		ProjectID: &projectID,
		ActorID:   &owner,
		Success:   true,
	})
}

// VideoEnded logs the end of a video session. reason is "ended" when the
// owner ended it, "empty" when the last participant left, and "reaped" when
// the reconciler cleared it.
func (l *Logger) VideoEnded(ctx context.Context, projectID primitive.ObjectID, actor *primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryVideo,
		EventType: audit.EventVideoEnded,
		ProjectID: &projectID,
		ActorID:   actor,
		Success:   true,
		Details:   map[string]string{"reason": reason},
	})
}
