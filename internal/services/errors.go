package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken rejects registration with an address that is already in use.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusBadRequest)
	// ErrMeetingNotFound indicates the requested meeting does not exist or belongs to someone else.
	ErrMeetingNotFound = apperrors.New("MEETING_NOT_FOUND", "Meeting not found", http.StatusNotFound)
	// ErrContextNotFound indicates no brief has been generated for the meeting.
	ErrContextNotFound = apperrors.New("CONTEXT_NOT_FOUND", "Meeting context not found", http.StatusNotFound)
	// ErrNotificationNotFound indicates the requested notification does not exist.
	ErrNotificationNotFound = apperrors.New("NOTIFICATION_NOT_FOUND", "Notification not found", http.StatusNotFound)
	// ErrScheduledInPast rejects reminders whose delivery time has already passed.
	ErrScheduledInPast = apperrors.New("SCHEDULED_IN_PAST", "Scheduled time must be in the future", http.StatusBadRequest)
	// ErrResendNotFailed restricts resends to notifications that previously failed.
	ErrResendNotFailed = apperrors.New("RESEND_NOT_FAILED", "Only failed notifications can be resent", http.StatusConflict)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
