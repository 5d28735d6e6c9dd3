// shot opens a camera, takes a burst of frames and exits.
//
//	shot -d /dev/video0 -w 640 -h 480 -n 3 -o .
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"go.uber.org/multierr"

	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/codec"
	"webcam-shutter/pkg/storage"
	"webcam-shutter/pkg/utils"
	"webcam-shutter/pkg/video"
)

var (
	devName   = flag.String("d", camera.DefaultDevice, "device name (path)")
	width     = flag.Int("w", 640, "frame width")
	height    = flag.Int("h", 480, "frame height")
	count     = flag.Int("n", 1, "number of frames")
	dir       = flag.String("o", ".", "output directory, shots go to <dir>/shots")
	quality   = flag.Int("q", 0, "re-encode at this jpeg quality, 0 keeps the camera's bytes")
	aviPath   = flag.String("avi", "", "write the burst into this avi file instead of single shots")
	fps       = flag.Int("fps", 10, "avi frame rate")
	timeout   = flag.Duration("t", camera.DefaultTimeout, "wait limit per frame")
	skipEmpty = flag.Bool("skip-empty", false, "count empty reads against -n")
)

var logger = utils.GetLogger()

func main() {
	flag.Parse()
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run() (err error) {
	consumer, closeConsumer, err := newConsumer()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeConsumer())
	}()

	policy := camera.EmptyReadRetry
	if *skipEmpty {
		policy = camera.EmptyReadSkip
	}
	sess, err := camera.Open(*devName, *width, *height,
		camera.WithTimeout(*timeout),
		camera.WithEmptyReadPolicy(policy),
	)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
	}()

	if err = sess.StartStreaming(); err != nil {
		return err
	}

	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()
	start := time.Now()
	n, err := sess.CaptureFrames(ctx, *count, consumer)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warnf("interrupted after %d frame(s)", n)
		}
		return err
	}
	logger.Infof("captured %d frame(s) in %s", n, time.Since(start))

	return sess.StopStreaming()
}

func newConsumer() (camera.Consumer, func() error, error) {
	if *aviPath != "" {
		b, err := video.NewBuilder(*aviPath, *width, *height, *fps)
		if err != nil {
			return nil, nil, err
		}
		return b, func() error {
			logger.Infof("wrote %d frame(s) to %s", b.GetCnt(), b.Path())
			return b.Close()
		}, nil
	}

	enc, err := codec.New(*quality)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.New(*dir, storage.WithEncoder(enc))
	if err != nil {
		return nil, nil, err
	}
	burst := store.NewBurst()
	return burst, func() error {
		for _, name := range burst.Files() {
			logger.Infof("saved %s", name)
		}
		return nil
	}, nil
}
