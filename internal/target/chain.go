package target

import (
	"context"
	"fmt"
	"time"
)

// chainClient delegates to an injected pipeline object. Any failure,
// including a panic inside the pipeline, is wrapped as an invocation error
// so one misbehaving call cannot abort an assessment.
type chainClient struct {
	name    string
	chain   Invoker
	timeout time.Duration
}

func (c *chainClient) Name() string { return c.name }

func (c *chainClient) Invoke(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := invokeGuarded(ctx, prompt, c.chain.Invoke)
	if err != nil {
		return "", wrapInvokeErr(ctx, err)
	}
	return answer, nil
}

// customClient delegates to an injected callable under the same contract.
type customClient struct {
	name    string
	fn      InvokeFunc
	timeout time.Duration
}

func (c *customClient) Name() string { return c.name }

func (c *customClient) Invoke(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := invokeGuarded(ctx, prompt, c.fn)
	if err != nil {
		return "", wrapInvokeErr(ctx, err)
	}
	return answer, nil
}

// invokeGuarded converts panics from injected code into errors and honors
// the context even when the callee ignores it.
func invokeGuarded(ctx context.Context, prompt string, fn InvokeFunc) (answer string, err error) {
	type outcome struct {
		answer string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("target panicked: %v", r)}
			}
		}()
		a, e := fn(ctx, prompt)
		done <- outcome{answer: a, err: e}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case out := <-done:
		return out.answer, out.err
	}
}
