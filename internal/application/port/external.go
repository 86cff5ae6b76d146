package port

import "context"

// PermissionChecker is consulted before any mutating action. A denial
// short-circuits the whole request; nothing is partially executed.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, actorID, permissionKey string) (bool, error)
}

// EmailSender delivers email messages. Delivery is best-effort: the boolean
// result is logged, never surfaced as a request failure, and the core does
// not retry.
type EmailSender interface {
	SendEmailMessages(ctx context.Context, to []string, subject, text string) bool
}

// SMSTarget names the channel and phone numbers a text message goes to.
type SMSTarget struct {
	Channel string
	Phones  []string
}

// SMSSender delivers text messages, best-effort like EmailSender.
type SMSSender interface {
	SendSMSTextMessage(ctx context.Context, content string, target SMSTarget) bool
}

// Contact is a user's delivery endpoints.
type Contact struct {
	UserID string
	Email  string
	Phone  string
}

// UserDirectory resolves workflow roles and recipient contacts.
type UserDirectory interface {
	UserIDsByRole(ctx context.Context, role string) ([]string, error)
	RolesByUserID(ctx context.Context, userID string) ([]string, error)
	ContactsByUserIDs(ctx context.Context, userIDs []string) ([]Contact, error)
}
