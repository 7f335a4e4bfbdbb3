package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

var ErrInvalidToken = errors.New("fcm_invalid_token")

type Notification struct {
	Title string
	Body  string
}

type Message struct {
	Data         map[string]string
	Notification *Notification
}

type FCMSender struct {
	projectID string
	svc       *fcm.Service
}

// NewFCMSender loads service account credentials from credentialsPath. An empty
// projectID is taken from the credentials file.
func NewFCMSender(ctx context.Context, projectID, credentialsPath string) (*FCMSender, error) {
	if strings.TrimSpace(credentialsPath) == "" {
		return nil, fmt.Errorf("fcm credentials path required")
	}
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("load fcm credentials: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	return newFCMSender(ctx, projectID, option.WithCredentials(creds))
}

func newFCMSender(ctx context.Context, projectID string, opts ...option.ClientOption) (*FCMSender, error) {
	if projectID == "" {
		return nil, fmt.Errorf("fcm project id required")
	}
	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create fcm service: %w", err)
	}
	return &FCMSender{projectID: projectID, svc: svc}, nil
}

func (s *FCMSender) Send(ctx context.Context, token string, msg Message) error {
	if s == nil {
		return fmt.Errorf("fcm sender not configured")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("fcm token required")
	}

	m := &fcm.Message{
		Token:   token,
		Data:    msg.Data,
		Android: &fcm.AndroidConfig{Priority: "HIGH"},
	}
	if msg.Notification != nil {
		m.Notification = &fcm.Notification{Title: msg.Notification.Title, Body: msg.Notification.Body}
	}

	_, err := s.svc.Projects.Messages.
		Send("projects/"+s.projectID, &fcm.SendMessageRequest{Message: m}).
		Context(ctx).
		Do()
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrInvalidToken, gerr.Message)
	}
	return fmt.Errorf("fcm send: %w", err)
}
