package reporter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// SampleSource снимает текущее состояние рабочего места
type SampleSource interface {
	Sample(ctx context.Context) (Sample, error)
}

// Reporter периодически отправляет отчеты. Интервал берется из ответа сервера,
// после ошибок отправка пропускается, пока не истечет пауза Backoff
type Reporter struct {
	client   *Client
	source   SampleSource
	backoff  *Backoff
	interval atomic.Int64
	logger   *logrus.Logger

	onPolicy func(Policy)
}

func NewReporter(client *Client, source SampleSource, interval time.Duration, logger *logrus.Logger) *Reporter {
	r := &Reporter{
		client:  client,
		source:  source,
		backoff: NewBackoff(),
		logger:  logger,
	}
	r.interval.Store(int64(interval))
	return r
}

// WithBackoff заменяет расписание пауз
func (r *Reporter) WithBackoff(b *Backoff) *Reporter {
	r.backoff = b
	return r
}

// OnPolicy регистрирует обработчик новой политики (порог простоя и т.п.)
func (r *Reporter) OnPolicy(fn func(Policy)) {
	r.onPolicy = fn
}

func (r *Reporter) Interval() time.Duration {
	return time.Duration(r.interval.Load())
}

func (r *Reporter) Backoff() *Backoff {
	return r.backoff
}

// Send отправляет один отчет с учетом паузы. Возвращает false, если отправка пропущена
func (r *Reporter) Send(ctx context.Context, sample Sample) (bool, error) {
	if !r.backoff.CanSend() {
		return false, nil
	}

	policy, err := r.client.Report(ctx, sample)
	if err != nil {
		var needReason *NeedReasonError
		switch {
		case errors.As(err, &needReason):
			// сервер доступен, паузу не включаем
			return true, err
		case errors.Is(err, ErrUpgradeRequired):
			return true, err
		case ctx.Err() != nil:
			return false, ctx.Err()
		}
		delay := r.backoff.Failure()
		r.logger.WithError(err).WithFields(logrus.Fields{
			"failures": r.backoff.Failures(),
			"delay":    delay.String(),
		}).Warn("Report failed, backing off")
		return true, err
	}

	r.backoff.Success()
	r.applyPolicy(policy)
	return true, nil
}

func (r *Reporter) applyPolicy(policy Policy) {
	if policy.HeartbeatIntervalSeconds > 0 {
		r.interval.Store(int64(time.Duration(policy.HeartbeatIntervalSeconds) * time.Second))
	}
	if r.onPolicy != nil {
		r.onPolicy(policy)
	}
}

// Run отправляет heartbeat до отмены ctx. Требование обновления останавливает цикл
func (r *Reporter) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		sample, err := r.source.Sample(ctx)
		if err != nil {
			r.logger.WithError(err).Warn("Failed to take sample")
		} else {
			if sample.ReportType == "" {
				sample.ReportType = "heartbeat"
			}
			if _, err := r.Send(ctx, sample); errors.Is(err, ErrUpgradeRequired) {
				r.logger.Warn("Server requires a newer agent, reporting stopped")
				return err
			}
		}

		timer.Reset(r.Interval())
	}
}
