/*
DESCRIPTION
  netsender.go provides cloud reporting for stillcam: capture counters and
  scene brightness are sent as software defined pins, logs are uploaded and
  variable changes are passed back to the capture loop.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"context"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ausocean/client/pi/netlogger"
	"github.com/ausocean/client/pi/netsender"
	"github.com/ausocean/stillcam/capture"
	"github.com/ausocean/stillcam/config"
	"github.com/ausocean/utils/logging"
)

// Software defined pin values.
const (
	successPin    = "X60"
	failurePin    = "X61"
	brightnessPin = "X62"
)

// Netsender timing.
const (
	netSendRetryTime = 5 * time.Second
	defaultSleepTime = 60 // Seconds
)

// report runs netsender every monitor period until ctx is cancelled, sending
// changed variables on vars.
func report(ctx context.Context, ns *netsender.Sender, nl *netlogger.Logger, l logging.Logger, vars chan<- map[string]string) {
	defer close(vars)
	var vs int
	for {
		l.Debug("running netsender")
		err := ns.Run()
		if err != nil {
			l.Warning(pkg+"Run Failed. Retrying...", "error", err.Error())
			if !sleep(ctx, netSendRetryTime) {
				return
			}
			continue
		}

		l.Debug("sending logs")
		err = nl.Send(ns)
		if err != nil {
			l.Warning(pkg+"Logs could not be sent", "error", err.Error())
		}

		newVs := ns.VarSum()
		if vs != newVs {
			l.Info("varsum changed", "vs", newVs)
			v, err := ns.Vars()
			if err != nil {
				l.Error(pkg+"netSender failed to get vars", "error", err.Error())
				if !sleep(ctx, netSendRetryTime) {
					return
				}
				continue
			}
			vs = newVs
			l.Debug("got new vars", "vars", v)
			select {
			case vars <- v:
			case <-ctx.Done():
				return
			}
		}

		if !sleep(ctx, monitorPeriod(ns, l)) {
			return
		}
	}
}

// monitorPeriod returns the monitoring period netsender parameter (mp)
// defined in the netsender.conf config.
func monitorPeriod(ns *netsender.Sender, l logging.Logger) time.Duration {
	t, err := strconv.Atoi(ns.Param("mp"))
	if err != nil {
		l.Error(pkg+"could not get sleep time, using default", "error", err)
		t = defaultSleepTime
	}
	return time.Duration(t) * time.Second
}

// sleep waits for d, returning false if ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func createVarMap() map[string]string {
	m := make(map[string]string)
	for _, v := range config.Variables {
		m[v.Name] = v.Type
	}
	return m
}

// readPin provides a callback function of consistent signature for use by
// netsender to retrieve software defined pin values.
func readPin(c *capture.Controller, brightness *atomic.Uint64) func(pin *netsender.Pin) error {
	return func(pin *netsender.Pin) error {
		switch pin.Name {
		case successPin:
			pin.Value = c.Stats().Successes
		case failurePin:
			pin.Value = c.Stats().Failures
		case brightnessPin:
			pin.Value = int(math.Float64frombits(brightness.Load()) * 1000)
		}
		return nil
	}
}
