// Package training fits and persists the per-category forecasting models.
package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"spendplan/internal/config"
	"spendplan/internal/forecast"
	"spendplan/internal/log"
	"spendplan/internal/models"
	"spendplan/internal/records"
	"spendplan/internal/tsmodel"
)

// Seasonal order search bounds: p in {0,1,2}, P in {0,1}.
const (
	maxSeasonalOrder = 2
	maxSeasonalLags  = 1
)

// RecordSource is what training reads from the record store.
type RecordSource interface {
	records.RecordReader
	records.UserLister
}

// ModelSink is what training writes to the model store.
type ModelSink interface {
	models.Writer
	models.RunLogStore
}

type Trainer struct {
	records     RecordSource
	models      ModelSink
	categories  []string
	policy      config.Policy
	concurrency int
	logger      *log.Logger
	now         func() time.Time
}

// NewTrainer trains the given categories, or every category found in a
// user's history when the list is empty.
func NewTrainer(r RecordSource, m ModelSink, categories []string, policy config.Policy, concurrency int, logger *log.Logger) *Trainer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Trainer{
		records:     r,
		models:      m,
		categories:  categories,
		policy:      policy,
		concurrency: max(concurrency, 1),
		logger:      logger.WithComponent(log.ComponentTraining),
		now:         time.Now,
	}
}

// NewSink starts a run transcript for one user.
func (t *Trainer) NewSink() *log.RunSink {
	return log.NewRunSink(t.logger, uuid.NewString())
}

// TrainUser trains every category of userID with a rich enough history and
// records the run. The returned RunLog is also persisted.
func (t *Trainer) TrainUser(ctx context.Context, userID string, sink *log.RunSink) (models.RunLog, error) {
	return t.TrainUserForJob(ctx, userID, "", sink)
}

// TrainUserForJob is TrainUser with the run log linked to jobID.
func (t *Trainer) TrainUserForJob(ctx context.Context, userID, jobID string, sink *log.RunSink) (models.RunLog, error) {
	if sink == nil {
		sink = t.NewSink()
	}
	logger := sink.Logger().With(log.FieldUserID, userID)
	run := models.RunLog{
		RunID:     sink.RunID(),
		UserID:    userID,
		JobID:     jobID,
		StartedAt: sink.Started().UTC(),
	}
	logger.InfoContext(ctx, "Training run started", log.FieldJobID, jobID)

	trainErr := t.train(ctx, userID, logger, &run)

	switch {
	case trainErr != nil:
		run.Status = models.RunFailed
		run.Error = trainErr.Error()
		logger.ErrorContext(ctx, "Training run failed", log.FieldError, trainErr)
	case len(run.Skipped) > 0:
		run.Status = models.RunPartial
	default:
		run.Status = models.RunSucceeded
	}
	if trainErr == nil {
		if err := t.models.MarkTrained(ctx, userID, t.now().UTC()); err != nil {
			run.Status = models.RunFailed
			run.Error = err.Error()
			trainErr = fmt.Errorf("mark trained: %w", err)
		}
	}

	run.FinishedAt = t.now().UTC()
	logger.InfoContext(ctx, "Training run finished",
		"status", run.Status, "trained", len(run.Trained), "skipped", len(run.Skipped))
	run.Transcript = sink.String()

	// The run log is written even when the run failed, with a fresh
	// context so a cancelled run still leaves a trace.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := t.models.SaveRunLog(saveCtx, run); err != nil {
		return run, errors.Join(trainErr, fmt.Errorf("save run log: %w", err))
	}
	return run, trainErr
}

func (t *Trainer) train(ctx context.Context, userID string, logger *log.Logger, run *models.RunLog) error {
	recs, err := t.records.ListRecords(ctx, userID, "", "")
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	categories := t.categories
	if len(categories) == 0 {
		categories = forecast.HistoryCategories(recs)
	}

	fp := t.policy.Forecast
	cfg := tsmodel.TrainingConfig{
		Window:       fp.SequenceWindow,
		Epochs:       t.policy.Training.Epochs,
		LearningRate: t.policy.Training.LearningRate,
	}

	for _, cat := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		values := forecast.BuildSeries(recs, cat).Values()
		clog := logger.With(log.FieldCategory, cat, log.FieldHistoryLen, len(values))

		if len(values) < fp.RichHistory {
			clog.DebugContext(ctx, "Not enough history for models")
			continue
		}

		trained := false
		seasonal, err := tsmodel.TrainSeasonal(values, fp.SeasonalPeriod, maxSeasonalOrder, maxSeasonalLags, t.now().UTC())
		if err != nil {
			clog.WarnContext(ctx, "Seasonal model not fitted", log.FieldError, err)
			run.Skipped = append(run.Skipped, cat+"/"+models.KindSeasonal)
		} else {
			if err := t.models.SaveSeasonal(ctx, userID, cat, seasonal); err != nil {
				return fmt.Errorf("save seasonal %s: %w", cat, err)
			}
			clog.InfoContext(ctx, "Seasonal model saved",
				"order", seasonal.Spec.Order, "seasonal_order", seasonal.Spec.SeasonalOrder, "aic", seasonal.AIC)
			trained = true
		}

		if len(values) <= cfg.Window {
			clog.WarnContext(ctx, "Not enough sequence data")
			run.Skipped = append(run.Skipped, cat+"/"+models.KindSequence)
		} else {
			seq, err := tsmodel.TrainSequence(values, cfg, t.now().UTC())
			if err != nil {
				clog.WarnContext(ctx, "Sequence model not trained", log.FieldError, err)
				run.Skipped = append(run.Skipped, cat+"/"+models.KindSequence)
			} else {
				if err := t.models.SaveSequence(ctx, userID, cat, seq); err != nil {
					return fmt.Errorf("save sequence %s: %w", cat, err)
				}
				clog.InfoContext(ctx, "Sequence model saved", "loss", seq.Loss)
				trained = true
			}
		}

		if trained {
			run.Trained = append(run.Trained, cat)
		}
	}
	return nil
}

// TrainAll retrains every known user. One user's failure does not stop
// the others; all failures are returned joined.
func (t *Trainer) TrainAll(ctx context.Context) ([]models.RunLog, error) {
	users, err := t.records.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	t.logger.InfoContext(ctx, "Retraining all users", "users", len(users))

	runs := make([]models.RunLog, len(users))
	errs := make([]error, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, userID := range users {
		g.Go(func() error {
			run, err := t.TrainUser(gctx, userID, t.NewSink())
			runs[i] = run
			if err != nil {
				errs[i] = fmt.Errorf("user %s: %w", userID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return runs, errors.Join(errs...)
}
