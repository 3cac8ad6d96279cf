package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
)

// DefaultSubject is the NATS subject export notifications go to.
const DefaultSubject = "themis.exports.files"

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the payload published for each export.
type Message struct {
	ID        string    `json:"id"`
	Files     []string  `json:"files"`
	Published time.Time `json:"published"`
}

// NATSNotifier publishes the produced files on a NATS subject.
type NATSNotifier struct {
	pub     Publisher
	subject string
	now     func() time.Time
	log     *zap.SugaredLogger
}

func NewNATSNotifier(pub Publisher, subject string, log *zap.SugaredLogger) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &NATSNotifier{pub: pub, subject: subject, now: time.Now, log: log}
}

func (n *NATSNotifier) Notify(_ context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}
	data, err := json.Marshal(Message{ID: uuid.NewString(), Files: files, Published: n.now().UTC()})
	if err != nil {
		return errors.Wrap(err, "failed to encode export notification")
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish export notification on %s", n.subject)
	}
	n.log.Debugw("Published export notification", "subject", n.subject, logger.FieldCount, len(files))
	return nil
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("themis-export-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS at %s", url)
	}
	return nc, nil
}
