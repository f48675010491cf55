package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/laurel/pkg/context"
	"github.com/Ramsey-B/laurel/pkg/models"
	syncengine "github.com/Ramsey-B/laurel/pkg/sync"
)

// SyncRunner starts one sync pass
type SyncRunner interface {
	Run(ctx context.Context, opts syncengine.Options) (*models.SyncLog, error)
}

// RunStore reads sync run history
type RunStore interface {
	List(ctx context.Context, limit int) ([]models.SyncLog, error)
	GetLatestCompleted(ctx context.Context) (*models.SyncLog, error)
}

// WindowConfig reports the configured fetch window sizes
type WindowConfig struct {
	LookbackDays       int `json:"lookback_days"`
	RoutineHorizonDays int `json:"routine_horizon_days"`
	FullHorizonDays    int `json:"full_horizon_days"`
}

// SyncHandler handles sync trigger and history API requests
type SyncHandler struct {
	runner       SyncRunner
	runs         RunStore
	historyLimit int
	window       WindowConfig
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, runs RunStore, historyLimit int, window WindowConfig) *SyncHandler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &SyncHandler{
		runner:       runner,
		runs:         runs,
		historyLimit: historyLimit,
		window:       window,
	}
}

// TriggerSyncRequest optionally overrides the computed fetch window
type TriggerSyncRequest struct {
	WindowStart string `json:"window_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	WindowEnd   string `json:"window_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RegisterRoutes registers the sync routes. Triggers and reads carry
// different rate limit budgets.
func (h *SyncHandler) RegisterRoutes(g *echo.Group, triggerLimit, readLimit echo.MiddlewareFunc) {
	sync := g.Group("/sync")
	sync.POST("", h.Trigger(models.SyncTypeRoutine), triggerLimit)
	sync.POST("/full", h.Trigger(models.SyncTypeFull), triggerLimit)
	sync.GET("/history", h.History, readLimit)
	sync.GET("/info", h.Info, readLimit)
}

// Trigger handles POST /sync and POST /sync/full. The run executes inside
// the request; the response is the finished run record.
func (h *SyncHandler) Trigger(syncType models.SyncType) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req TriggerSyncRequest
		if err := BindAndValidate(c, &req); err != nil {
			return err
		}

		triggeredBy := appctx.GetClientID(ctx)
		if triggeredBy == "" {
			triggeredBy = "api"
		}

		run, err := h.runner.Run(ctx, syncengine.Options{
			Type:        syncType,
			WindowStart: req.WindowStart,
			WindowEnd:   req.WindowEnd,
			TriggeredBy: triggeredBy,
		})
		if err != nil && run == nil {
			return err
		}

		// A failed run still produced a log worth returning
		return SuccessResponse(c, run)
	}
}

// History handles GET /sync/history
func (h *SyncHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	limit := h.historyLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			return BadRequest("limit must be an integer between 1 and 100")
		}
		limit = parsed
	}

	logs, err := h.runs.List(ctx, limit)
	if err != nil {
		return err
	}

	return SuccessResponse(c, logs)
}

// Info handles GET /sync/info, returning the configured window sizes and
// the most recent finished run
func (h *SyncHandler) Info(c echo.Context) error {
	ctx := c.Request().Context()

	latest, err := h.runs.GetLatestCompleted(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"window":     h.window,
		"latest_run": latest,
	})
}

func validateDate(value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return BadRequest("dates must use the YYYY-MM-DD format")
	}
	return nil
}
