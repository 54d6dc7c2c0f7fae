// internal/workers/notifications/create-notification/handler.go
package createnotification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/validation"
	"teamhub-notifications/internal/notifications"
)

const (
	TaskType = "create-notification"
)

// Creator is satisfied by notifications.Service.
type Creator interface {
	CreateAdvancedNotification(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error)
}

type Handler struct {
	config       *Config
	service      Creator
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service Creator, log logger.Logger) *Handler {
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

	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			commonerrors.NewInvalidNotificationInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}
	if err := h.Validate(vars); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, notifications.AsStandardError(err))
		return
	}

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

// Validate checks raw job variables against the configured input schema.
func (h *Handler) Validate(vars map[string]interface{}) error {
	result, err := validation.ValidateAgainstSchema(h.config.InputSchema, vars)
	if err != nil {
		return fmt.Errorf("%w: %v", notifications.ErrInvalidInput, err)
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s", notifications.ErrInvalidInput, result.Error())
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.service.CreateAdvancedNotification(ctx, input.Notification())
	if err != nil {
		return nil, err
	}

	if len(result.Warnings) > 0 {
		h.logger.Warn("notification created with warnings", map[string]interface{}{
			"ids":      result.IDs,
			"warnings": result.Warnings,
		})
	}
	return &Output{
		IDs:       result.IDs,
		Count:     len(result.IDs),
		Delivery:  result.Delivery,
		Indexed:   result.Indexed,
		Published: result.Published,
		Warnings:  result.Warnings,
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
