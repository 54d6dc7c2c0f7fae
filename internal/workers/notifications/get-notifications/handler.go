// internal/workers/notifications/get-notifications/handler.go
package getnotifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"
)

const (
	TaskType = "get-notifications"
)

// FeedReader is satisfied by notifications.Service.
type FeedReader interface {
	GetNotifications(ctx context.Context, q notifications.Query) (*notifications.Page, error)
}

type Handler struct {
	config       *Config
	service      FeedReader
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service FeedReader, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			commonerrors.NewInvalidNotificationInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, notifications.AsStandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	page, err := h.service.GetNotifications(ctx, input.Query())
	if err != nil {
		return nil, err
	}

	urgent := 0
	for _, n := range page.Notifications {
		if n.Priority.AtLeast(notifications.PriorityHigh) {
			urgent++
		}
	}

	h.logger.Debug("feed built", map[string]interface{}{
		"userId": input.UserID,
		"total":  page.Total,
		"urgent": urgent,
	})
	return &Output{
		Notifications: page.Notifications,
		Total:         page.Total,
		UnreadCount:   page.UnreadCount,
		UrgentCount:   urgent,
		HasMore:       page.HasMore,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
