// Package mocks provides testify mocks for the engine's collaborator
// interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

// MockRecordStore mocks protocol.RecordStore.
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) GetRecord(ctx context.Context, objectType models.ObjectType, id string) (map[string]any, error) {
	args := m.Called(ctx, objectType, id)

	fields, _ := args.Get(0).(map[string]any)

	return fields, args.Error(1)
}

func (m *MockRecordStore) UpdateField(ctx context.Context, objectType models.ObjectType, id, field string, value any) error {
	args := m.Called(ctx, objectType, id, field, value)

	return args.Error(0)
}

func (m *MockRecordStore) CreateRecord(ctx context.Context, objectType models.ObjectType, fields map[string]any) (string, error) {
	args := m.Called(ctx, objectType, fields)

	return args.String(0), args.Error(1)
}

// MockEmailSender mocks protocol.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body, ctaText, ctaURL string) error {
	args := m.Called(ctx, to, subject, body, ctaText, ctaURL)

	return args.Error(0)
}

// MockSMSSender mocks protocol.SMSSender.
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	args := m.Called(ctx, to, body)

	return args.Error(0)
}

// MockPortalMessenger mocks protocol.PortalMessenger.
type MockPortalMessenger struct {
	mock.Mock
}

func (m *MockPortalMessenger) SendPortalMessage(ctx context.Context, recordID, body string) error {
	args := m.Called(ctx, recordID, body)

	return args.Error(0)
}

// MockWebhookCaller mocks protocol.WebhookCaller.
type MockWebhookCaller struct {
	mock.Mock
}

func (m *MockWebhookCaller) Call(ctx context.Context, url, method string, body []byte) error {
	args := m.Called(ctx, url, method, body)

	return args.Error(0)
}

// MockTaskCreator mocks protocol.TaskCreator.
type MockTaskCreator struct {
	mock.Mock
}

func (m *MockTaskCreator) CreateTask(ctx context.Context, title, actionType, assignedTo string) error {
	args := m.Called(ctx, title, actionType, assignedTo)

	return args.Error(0)
}
