package notify

import (
	"context"
)

// RetryJob wraps a retried send into a queue Job. The job keeps ctx values but not
// its cancellation, since producers usually return long before the job runs.
// onSuccess, when set, receives the provider result; its error fails the job
func RetryJob(ctx context.Context, name string, r *Retrier, sender Sender, destination, body string, onSuccess func(*SendResult) error) Job {
	jobCtx := context.WithoutCancel(ctx)

	return Job{
		Name: name,
		Run: func() error {
			res, err := r.Send(jobCtx, sender, destination, body)
			if err != nil {
				return err
			}
			if onSuccess != nil {
				return onSuccess(res)
			}
			return nil
		},
	}
}
