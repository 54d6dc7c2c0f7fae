// internal/workers/notifications/archive-notification/handler.go
package archivenotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"
)

const (
	TaskType = "archive-notification"
)

// Remover is satisfied by notifications.Service.
type Remover interface {
	ArchiveNotification(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
}

type Handler struct {
	config       *Config
	service      Remover
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service Remover, log logger.Logger) *Handler {
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
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if mode == "" {
		mode = ModeArchive
	}

	var err error
	switch mode {
	case ModeArchive:
		err = h.service.ArchiveNotification(ctx, input.NotificationID)
	case ModeDelete:
		err = h.service.DeleteNotification(ctx, input.NotificationID)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", notifications.ErrInvalidInput, input.Mode)
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		NotificationID: input.NotificationID,
		Mode:           mode,
		Removed:        true,
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
