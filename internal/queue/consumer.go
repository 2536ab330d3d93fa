package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartResetMailConsumer connects to RabbitMQ, declares the
// auth.password_reset queue (durable), and starts consuming messages. Each
// message is rendered as a reset email and appended to logs/mail.log, the
// development transport; a production deployment would swap the renderer for
// a transactional mail provider. The function runs a reconnect loop and
// keeps running on processing errors, rejecting the offending message so
// the server continues operating.
func StartResetMailConsumer(baseURL string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("reset-mail: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, baseURL); err != nil {
			log.Printf("reset-mail: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, baseURL string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Printf("reset-mail: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(resetQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(resetQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, baseURL); err != nil {
			log.Printf("reset-mail: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, baseURL string) error {
	var ev PasswordResetRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "mail.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mail log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(renderResetMail(ev, baseURL)); err != nil {
		return fmt.Errorf("write mail log: %w", err)
	}
	return nil
}

// renderResetMail produces the plain-text reset email. The magic link embeds
// the raw token; it expires one hour after issuance.
func renderResetMail(ev PasswordResetRequestedEvent, baseURL string) string {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", baseURL, ev.RawToken)
	return fmt.Sprintf(
		"To: %s\nSubject: Password Reset - BlissfulBond\n\n"+
			"Hi %s,\n\n"+
			"We received a request to reset your password.\n"+
			"Click the link below to create a new password:\n%s\n\n"+
			"This link will expire in 1 hour for security.\n"+
			"If you didn't request this reset, you can safely ignore this email.\n"+
			"----\n",
		ev.Email, ev.UserName, resetURL)
}
