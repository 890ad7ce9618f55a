// Package push delivers rider notifications through Firebase Cloud Messaging.
package push

import (
	"context"
	"errors"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrInvalidToken means the device token will never be deliverable again and
// should be forgotten.
var ErrInvalidToken = errors.New("invalid device token")

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier sends one message to one device.
type Notifier interface {
	Send(ctx context.Context, token string, msg Message) error
}

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier is the production Notifier.
type FCMNotifier struct {
	client  sender
	invalid func(error) bool
}

// NewFCMNotifier initialises the Firebase app. An empty credentialsFile falls
// back to application-default credentials.
func NewFCMNotifier(ctx context.Context, projectID, credentialsFile string) (*FCMNotifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMNotifier{client: client, invalid: isInvalidToken}, nil
}

func (n *FCMNotifier) Send(ctx context.Context, token string, msg Message) error {
	_, err := n.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err == nil {
		return nil
	}
	if n.invalid(err) {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return fmt.Errorf("fcm send failed: %w", err)
}

func isInvalidToken(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}

// LogNotifier stands in when no Firebase project is configured.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, token string, msg Message) error {
	log.Printf("Push (not configured) to %s: %s - %s", token, msg.Title, msg.Body)
	return nil
}
