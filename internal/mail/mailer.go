// Package mail delivers the templated transactional messages this service
// owns: currently only the password reset code. Content is assembled here;
// transport is behind the Mailer interface so the auth core never sees SMTP.
package mail

import (
	"context"
	"fmt"
	"time"
)

// Message is a fully rendered outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// CodeSender renders localized reset-code messages and hands them to a
// Mailer. Implements auth.ResetMailer.
type CodeSender struct {
	mailer Mailer
}

// NewCodeSender wraps a transport.
func NewCodeSender(m Mailer) *CodeSender {
	return &CodeSender{mailer: m}
}

// SendResetCode delivers the plaintext code and its expiry to the resolved
// login email. locale selects the template; anything but "ar" falls back to
// English.
func (c *CodeSender) SendResetCode(ctx context.Context, to, locale, code string, expiresIn time.Duration) error {
	msg := ResetCodeMessage(to, locale, code, expiresIn)
	return c.mailer.Send(ctx, msg)
}

// ResetCodeMessage renders the localized reset email.
func ResetCodeMessage(to, locale, code string, expiresIn time.Duration) Message {
	minutes := int(expiresIn.Minutes())
	if locale == "ar" {
		return Message{
			To:      to,
			Subject: "رمز إعادة تعيين كلمة المرور - JobGate",
			Body: "تلقينا طلباً لإعادة تعيين كلمة المرور لحسابك.\n\n" +
				fmt.Sprintf("رمز التحقق الخاص بك هو: %s\n", code) +
				fmt.Sprintf("تنتهي صلاحية هذا الرمز خلال %d دقيقة.\n\n", minutes) +
				"إذا لم تطلب ذلك، يرجى تجاهل هذه الرسالة.\n",
		}
	}
	return Message{
		To:      to,
		Subject: "Password Reset Code - JobGate",
		Body: "We received a password reset request for your account.\n\n" +
			fmt.Sprintf("Your verification code is: %s\n", code) +
			fmt.Sprintf("This code expires in %d minutes.\n\n", minutes) +
			"If you did not request this, please ignore this email.\n",
	}
}
