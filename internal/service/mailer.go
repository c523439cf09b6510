package service

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
)

// Mailer sends transactional mail over SMTP. All sends are asynchronous and
// best-effort: nothing in the request path waits for, or depends on,
// delivery succeeding. When the SMTP environment variables are missing the
// mailer stays disabled and sends become no-ops.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	enabled  bool
}

// NewMailer reads SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS and SMTP_FROM.
func NewMailer() *Mailer {
	m := &Mailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		username: os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASS"),
		from:     os.Getenv("SMTP_FROM"),
	}
	m.enabled = m.host != "" && m.port != "" && m.username != "" && m.password != "" && m.from != ""
	if !m.enabled {
		log.Println("mailer disabled: missing SMTP environment variables")
	}
	return m
}

func (m *Mailer) sendAsync(to, subject, body string) {
	if !m.enabled {
		return
	}
	go func() {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		addr := m.host + ":" + m.port
		msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s\r\n",
			to, m.from, subject, body))
		if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
			log.Printf("mailer: send to %s failed: %v", to, err)
		}
	}()
}

// SendApproval mails the freshly provisioned account's temporary password to
// an approved applicant.
func (m *Mailer) SendApproval(email, nickname, tempPassword string) {
	body := fmt.Sprintf(
		"Your whitelist application for %s was approved.\n\n"+
			"Log in with your email and the temporary password below, then change it:\n\n"+
			"    %s\n\nSee you on the server!",
		nickname, tempPassword)
	m.sendAsync(email, "Application approved", body)
}

// SendRejection notifies an applicant of a rejection, including the
// reviewer's comment when one was left.
func (m *Mailer) SendRejection(email, nickname, comment string) {
	body := fmt.Sprintf("Your whitelist application for %s was not accepted.", nickname)
	if comment != "" {
		body += "\n\nReviewer note: " + comment
	}
	body += "\n\nYou are welcome to apply again."
	m.sendAsync(email, "Application update", body)
}

// SendVerifyCode mails an email verification code.
func (m *Mailer) SendVerifyCode(email, code string) {
	body := fmt.Sprintf(
		"Use this code to verify your email address:\n\n    %s\n\n"+
			"Verification is required to advance past trust level 0.", code)
	m.sendAsync(email, "Verify your email", body)
}
