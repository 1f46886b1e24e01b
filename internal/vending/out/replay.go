package out

import (
	"context"
	"fmt"
)

// Replay forwards spooled envelopes past the checkpoint to dst unchanged,
// keyed like a live emit, saving the checkpoint after each one. Returns how
// many were forwarded by this call. Delivery is at-least-once: a crash between
// Forward and Save resends one record.
func Replay(ctx context.Context, spoolPath string, ckpt Checkpoint, dst Forwarder) (int, error) {
	envs, err := ReadSpool(spoolPath)
	if err != nil {
		return 0, err
	}
	c, _, err := ckpt.Load()
	if err != nil {
		return 0, err
	}
	if c.Forwarded > len(envs) {
		return 0, fmt.Errorf("replay: checkpoint %d beyond spool length %d", c.Forwarded, len(envs))
	}

	sent := 0
	for _, env := range envs[c.Forwarded:] {
		key, err := env.Key()
		if err != nil {
			return sent, fmt.Errorf("replay record %d: %w", c.Forwarded, err)
		}
		if err := dst.Forward(ctx, env, key); err != nil {
			return sent, err
		}
		c.Forwarded++
		sent++
		if err := ckpt.Save(c); err != nil {
			return sent, err
		}
	}
	return sent, nil
}
