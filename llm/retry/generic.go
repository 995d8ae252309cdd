package retry

import "context"

// Value runs fn under r and returns the result of the successful attempt.
// Each attempt receives ctx, so a cancelled caller stops both the attempt and
// the backoff wait.
//
//	resp, err := retry.Value(ctx, r, func(ctx context.Context) (*llm.ChatResponse, error) {
//	    return provider.Completion(ctx, req)
//	})
func Value[T any](ctx context.Context, r Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func() error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
