package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendWelcomeEmail(email, name string) error
	SendVerificationCode(email, name, code string) error
	SendOrderDelivered(email, name, orderTitle string) error
	SendPaymentReceipt(email, name, orderTitle, ref, amount string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

func (s *emailService) send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %q to %s: %w", subject, to, err)
	}
	return nil
}

func (s *emailService) SendWelcomeEmail(email, name string) error {
	body := fmt.Sprintf(`
		<h2>Welcome to EssayHub, %s!</h2>
		<p>Thank you for registering with us.</p>
		<p>Confirm your email address with the code we sent you to activate your account.</p>
		<p>Best regards,<br>The EssayHub Team</p>
	`, name)
	return s.send(email, "Welcome to EssayHub!", body)
}

func (s *emailService) SendVerificationCode(email, name, code string) error {
	body := fmt.Sprintf(`
		<h3>Email verification</h3>
		<p>Hi %s,</p>
		<p>Your verification code is: <strong>%s</strong></p>
		<p>The code expires in a few minutes. If you did not register, ignore this email.</p>
	`, name, code)
	return s.send(email, "Your EssayHub verification code", body)
}

func (s *emailService) SendOrderDelivered(email, name, orderTitle string) error {
	body := fmt.Sprintf(`
		<h3>Your order is ready</h3>
		<p>Hi %s,</p>
		<p>Your order <strong>%s</strong> has been delivered. Log in to preview the work.</p>
		<p>The full document unlocks after payment.</p>
	`, name, orderTitle)
	return s.send(email, "Your order has been delivered", body)
}

func (s *emailService) SendPaymentReceipt(email, name, orderTitle, ref, amount string) error {
	body := fmt.Sprintf(`
		<h3>Payment received</h3>
		<p>Hi %s,</p>
		<p>We received your payment of <strong>%s</strong> for <strong>%s</strong>.</p>
		<p>Reference: %s</p>
		<p>The full document is now available for download.</p>
	`, name, amount, orderTitle, ref)
	return s.send(email, "Payment received", body)
}
