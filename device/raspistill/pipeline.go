/*
DESCRIPTION
  pipeline.go provides the built raspistill pipeline, which runs the camera
  utility once per capture.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package raspistill

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ausocean/stillcam/device"
)

type pipeline struct {
	r      *Raspistill
	graph  *device.Graph
	args   []string
	limit  time.Duration // Longest a single capture may take.
	closed bool
}

// Capture runs the camera utility, copying the image it writes on stdout to
// dst. Lines written on stderr are logged.
func (p *pipeline) Capture(ctx context.Context, dst io.Writer) error {
	if p.closed {
		return device.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, p.limit)
	defer cancel()

	p.r.log.Debug(pkg+"running camera utility", "command", p.r.cmd, "args", strings.Join(p.args, " "))
	var stderr bytes.Buffer
	err := p.r.run(ctx, p.r.cmd, p.args, dst, &stderr)

	errScnr := bufio.NewScanner(&stderr)
	for errScnr.Scan() {
		p.r.log.Error(pkg+"error line from stderr", "error", errScnr.Text())
	}

	if err != nil {
		return fmt.Errorf("could not run %s: %w", p.r.cmd, err)
	}
	return nil
}

// Close disposes of the pipeline's graph.
func (p *pipeline) Close() error {
	p.closed = true
	return p.graph.Close()
}
