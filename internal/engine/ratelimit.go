package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps throughput to bytesPerSec.
// The burst is capped at 1 MB so a full copy buffer passes without
// unnecessary blocking.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedWriter wraps an io.Writer and enforces a shared rate limit.
// Writes larger than the burst are split so WaitN never rejects them.
type rateLimitedWriter struct {
	ctx     context.Context //nolint:containedctx // scoped to one Execute call
	w       io.Writer
	limiter *rate.Limiter
}

func newRateLimitedWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) *rateLimitedWriter {
	return &rateLimitedWriter{ctx: ctx, w: w, limiter: limiter}
}

func (rw *rateLimitedWriter) Write(p []byte) (int, error) {
	var written int
	burst := rw.limiter.Burst()
	for len(p) > 0 {
		chunk := p
		if len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := rw.limiter.WaitN(rw.ctx, len(chunk)); err != nil {
			return written, err
		}
		n, err := rw.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
	}
	return written, nil
}
