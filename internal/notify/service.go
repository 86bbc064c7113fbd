package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"clubledger/internal/logger"
	"clubledger/internal/metrics"
)

const (
	queueKey       = "billing_notifications"
	failedQueueKey = "billing_notifications:failed"

	maxTries = 3
)

type Job struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
	}
}

func (s *Service) queue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("failed to marshal notification job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Errorf("failed to queue %s notification to %s: %v", job.Type, job.To, err)
		return err
	}

	logger.Infof("notification queued: %s to %s", job.Type, job.To)
	return nil
}

// SendPaymentReceipt queues the receipt sent when an obligation settles.
func (s *Service) SendPaymentReceipt(ctx context.Context, email, name, period, amount string) error {
	body := fmt.Sprintf(`Hi %s,

We have received payment in full for your %s fees.

Period: %s
Amount settled: %s

Thank you!

- ClubLedger Billing`, name, period, period, amount)

	return s.queue(ctx, Job{
		To:      email,
		Name:    name,
		Type:    "payment_receipt",
		Subject: "Payment received - " + period,
		Body:    body,
		Created: time.Now(),
	})
}

// SendObligationDueNotice queues a due reminder for an upcoming obligation.
func (s *Service) SendObligationDueNotice(ctx context.Context, email, name, period, amount string, dueDate time.Time) error {
	body := fmt.Sprintf(`Hi %s,

Your %s fees are due on %s.

Amount due: %s

- ClubLedger Billing`, name, period, dueDate.Format("Jan 2, 2006"), amount)

	return s.queue(ctx, Job{
		To:      email,
		Name:    name,
		Type:    "obligation_due",
		Subject: "Fees due - " + period,
		Body:    body,
		Created: time.Now(),
	})
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("notification service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}
	metrics.NotificationQueueLength.Set(float64(s.QueueLength(ctx)))

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("bad notification data: %v", err)
		return
	}

	job.Tries++
	if err := s.sendNow(job); err != nil {
		logger.Errorf("failed to send %s notification to %s: %v", job.Type, job.To, err)

		if job.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
		} else {
			metrics.RecordNotification(job.Type, "failed")
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordNotification(job.Type, "sent")
	logger.Infof("notification sent to %s", job.To)
}

func (s *Service) sendNow(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("notification moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}
