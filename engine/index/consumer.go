package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/pkg/natsutil"
)

const (
	// Subject carries documents queued for indexing.
	Subject = "docent.index"
	// DLQSubject receives messages that exhausted their retries.
	DLQSubject = "docent.index.dlq"
	// MaxRetries before a message moves to the DLQ.
	MaxRetries = 3

	// ConsumeTimeout bounds the pipeline run for one queued document.
	ConsumeTimeout = 5 * time.Minute

	retryHeader = "X-Retry-Count"
)

// Request is the wire form of a document queued for indexing. Data is
// base64 on the wire via encoding/json.
type Request struct {
	DocID string `json:"doc_id,omitempty"`
	Name  string `json:"name"`
	Data  []byte `json:"data"`
}

// DocumentID derives a stable document ID from a namespace and filename,
// used when a queued request carries none.
func DocumentID(namespace, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+name)).String()
}

// Document converts a Request into a domain.Document within a namespace.
func (r Request) Document(namespace string) (domain.Document, error) {
	format, ok := domain.FormatFromFilename(r.Name)
	if !ok {
		return domain.Document{}, domain.NewInputError(r.DocID, r.Name, domain.ErrUnsupportedFormat)
	}
	id := r.DocID
	if id == "" {
		id = DocumentID(namespace, r.Name)
	}
	return domain.Document{ID: id, Name: r.Name, Format: format, Data: r.Data}, nil
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// StartConsumer subscribes the Service to the indexing subject. Failed
// messages are re-published with an incremented retry count and land in
// the DLQ after MaxRetries. Input errors skip retry entirely; a document
// that cannot be parsed will not parse better the second time.
func StartConsumer(nc *nats.Conn, svc *Service, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Error("index: unmarshal failed", "error", err)
			return
		}

		ctx := natsutil.Extract(context.Background(), msg)

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		err := consume(ctx, svc, req)
		if err != nil {
			if isInputError(err) {
				log.Warn("index: rejecting unreadable document",
					"source", req.Name,
					"error", err,
				)
				publishDLQ(nc, log, req, err, retries)
				ackIfNeeded(msg)
				return
			}

			retries++
			log.Error("index: pipeline failed",
				"source", req.Name,
				"retry", retries,
				"error", err,
			)

			if retries >= MaxRetries {
				publishDLQ(nc, log, req, err, retries)
			} else {
				retryMsg := nats.NewMsg(Subject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("index: retry publish failed", "error", err)
				}
			}
		} else {
			log.Info("index: success", "source", req.Name)
		}

		ackIfNeeded(msg)
	})
}

// consume runs one queued document through the pipeline under a deadline,
// so a stalled provider fails the message into the retry path instead of
// wedging the subscription.
func consume(ctx context.Context, svc *Service, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, ConsumeTimeout)
	defer cancel()

	doc, err := req.Document(svc.deps.Config.Namespace)
	if err != nil {
		return atStage(StageNormalize, err)
	}
	_, err = svc.IndexDocument(ctx, doc)
	return err
}

func isInputError(err error) bool {
	var ie *domain.InputError
	return errors.As(err, &ie)
}

func publishDLQ(nc *nats.Conn, log *slog.Logger, req Request, cause error, retries int) {
	dlq := dlqMessage{Request: req, Error: cause.Error(), Retries: retries}
	data, _ := json.Marshal(dlq)
	if err := nc.Publish(DLQSubject, data); err != nil {
		log.Error("index: DLQ publish failed", "error", err)
	}
}

func ackIfNeeded(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}
