package mail

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"wallet-topup-backend/internal/services/reconcile"
)

// GmailSource implements reconcile.MailSource on top of the Gmail API.
// The bank only notifies the receiving inbox, so a single mailbox ("me")
// with a fixed from/subject query covers everything.
type GmailSource struct {
	svc *gmail.Service
	log *zap.Logger
}

func NewGmailSource(ctx context.Context, credentialsFile string, log *zap.Logger) (*GmailSource, error) {
	svc, err := gmail.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gmail.GmailReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("init gmail service: %w", err)
	}
	return &GmailSource{svc: svc, log: log}, nil
}

func (g *GmailSource) ListUnseen(ctx context.Context, filter string, max int) ([]reconcile.Message, error) {
	resp, err := g.svc.Users.Messages.List("me").
		Q(filter).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list gmail messages: %w", err)
	}

	msgs := make([]reconcile.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		full, err := g.svc.Users.Messages.Get("me", m.Id).Context(ctx).Do()
		if err != nil {
			// Skip the one message; the id stays unconsumed and is retried
			// on the next tick.
			g.log.Warn("fetch gmail message failed", zap.String("email_id", m.Id), zap.Error(err))
			continue
		}
		msgs = append(msgs, reconcile.Message{
			ID:      full.Id,
			Sender:  headerValue(full, "From"),
			Subject: headerValue(full, "Subject"),
			Body:    messageBody(full),
		})
	}
	return msgs, nil
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

func messageBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if data := decodePart(msg.Payload.Body); data != "" {
		return data
	}
	// Multipart messages carry the text in the first text/plain part.
	for _, part := range msg.Payload.Parts {
		if part.MimeType == "text/plain" {
			if data := decodePart(part.Body); data != "" {
				return data
			}
		}
	}
	return ""
}

func decodePart(body *gmail.MessagePartBody) string {
	if body == nil || body.Data == "" {
		return ""
	}
	data, err := base64.RawURLEncoding.DecodeString(body.Data)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(body.Data)
		if err != nil {
			return ""
		}
	}
	return string(data)
}
