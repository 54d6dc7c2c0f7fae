// internal/workers/notifications/create-notification/handler_test.go
package createnotification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"
)

// ==========================
// Mock Implementations
// ==========================

type MockCreator struct {
	CreateFunc func(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error)
	received   notifications.AdvancedNotification
}

func (m *MockCreator) CreateAdvancedNotification(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error) {
	m.received = in
	return m.CreateFunc(ctx, in)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestInput() *Input {
	return &Input{
		Title:     "Leave approved",
		Content:   "Your leave for 12-14 March was approved",
		CreatedBy: "workflow:leave-approval",
		TeamIDs:   []string{"team-1"},
		Priority:  "High",
		Channels:  []notifications.Channel{notifications.ChannelInApp, notifications.ChannelEmail},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		input          *Input
		result         *notifications.CreateResult
		err            error
		wantErrIs      error
		validateOutput func(t *testing.T, output *Output, received notifications.AdvancedNotification)
	}{
		{
			name:  "team ids imply team recipients",
			input: createTestInput(),
			result: &notifications.CreateResult{
				IDs:       []string{"announcement-a1"},
				Indexed:   true,
				Published: true,
				Delivery:  &notifications.DeliveryReport{Email: &notifications.ChannelReport{Attempted: 3, Sent: 3}},
			},
			validateOutput: func(t *testing.T, output *Output, received notifications.AdvancedNotification) {
				assert.Equal(t, notifications.RecipientsTeams, received.Recipients)
				assert.Equal(t, []string{"team-1"}, received.TeamIDs)
				assert.Equal(t, 1, output.Count)
				assert.True(t, output.Indexed)
				require.NotNil(t, output.Delivery)
				assert.Equal(t, 3, output.Delivery.Email.Sent)
			},
		},
		{
			name: "everyone with warnings",
			input: &Input{
				Title:      "Office closed Friday",
				CreatedBy:  "admin-1",
				Recipients: notifications.RecipientsEveryone,
			},
			result: &notifications.CreateResult{
				IDs:      []string{"announcement-a1", "announcement-a2"},
				Warnings: []string{"search index: SEARCH_INDEX_FAILED: cluster red"},
			},
			validateOutput: func(t *testing.T, output *Output, received notifications.AdvancedNotification) {
				assert.Equal(t, notifications.RecipientsEveryone, received.Recipients)
				assert.Equal(t, 2, output.Count)
				assert.False(t, output.Indexed)
				assert.Len(t, output.Warnings, 1)
			},
		},
		{
			name:      "write failure",
			input:     createTestInput(),
			err:       fmt.Errorf("%w: connection reset", notifications.ErrCreateFailed),
			wantErrIs: notifications.ErrCreateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &MockCreator{
				CreateFunc: func(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error) {
					return tt.result, tt.err
				},
			}
			handler := NewHandler(LoadConfig(), creator, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), tt.input)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output, creator.received)
		})
	}
}

func TestHandler_Validate(t *testing.T) {
	handler := NewHandler(LoadConfig(), &MockCreator{}, logger.NewTestLogger(t))

	tests := []struct {
		name    string
		vars    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid",
			vars: map[string]interface{}{
				"title": "Standup moved", "content": "10:30 today", "createdBy": "mgr-1",
				"recipients": "teams", "teamIds": []interface{}{"team-1"}, "priority": "Medium",
			},
		},
		{
			name:    "missing title",
			vars:    map[string]interface{}{"content": "x", "createdBy": "mgr-1"},
			wantErr: true,
		},
		{
			name:    "unknown channel",
			vars:    map[string]interface{}{"title": "x", "content": "x", "createdBy": "mgr-1", "channels": []interface{}{"pager"}},
			wantErr: true,
		},
		{
			name:    "bad priority",
			vars:    map[string]interface{}{"title": "x", "content": "x", "createdBy": "mgr-1", "priority": "urgent"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.Validate(tt.vars)
			if tt.wantErr {
				assert.True(t, errors.Is(err, notifications.ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandler_Validate_EmptySchema(t *testing.T) {
	handler := NewHandler(&Config{Timeout: time.Second}, &MockCreator{}, logger.NewTestLogger(t))
	assert.NoError(t, handler.Validate(map[string]interface{}{}))
}
