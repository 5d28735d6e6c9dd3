//go:build linux

// probe prints what a V4L2 device offers: capabilities, current format,
// MJPEG frame sizes and controls.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/goccy/go-json"
	dev "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"webcam-shutter/pkg/camera"
	fourcc "webcam-shutter/pkg/v4l2"
)

type report struct {
	Device    string    `json:"device"`
	Driver    string    `json:"driver"`
	Card      string    `json:"card"`
	BusInfo   string    `json:"busInfo"`
	Capture   bool      `json:"capture"`
	Streaming bool      `json:"streaming"`
	Format    format    `json:"format"`
	MJPEG     bool      `json:"mjpeg"`
	Sizes     []size    `json:"sizes"`
	Controls  []control `json:"controls"`
}

type format struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	PixelFormat string `json:"pixelFormat"`
}

type size struct {
	PixelFormat string `json:"pixelFormat"`
	MaxWidth    uint32 `json:"maxWidth"`
	MaxHeight   uint32 `json:"maxHeight"`
}

type control struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Min     int64  `json:"min"`
	Max     int64  `json:"max"`
	Step    int64  `json:"step"`
	Default int64  `json:"default"`
	Value   int64  `json:"value"`
}

func main() {
	devName := camera.DefaultDevice
	flag.StringVar(&devName, "d", devName, "device name (path)")
	flag.Parse()

	device, err := dev.Open(devName)
	if err != nil {
		log.Fatalf("failed to open device: %s", err)
	}
	defer device.Close()

	r := report{Device: devName}

	caps, err := v4l2.GetCapability(device.Fd())
	if err != nil {
		log.Fatalf("query capability: %s", err)
	}
	r.Driver, r.Card, r.BusInfo = caps.Driver, caps.Card, caps.BusInfo
	r.Capture = caps.IsVideoCaptureSupported()
	r.Streaming = caps.IsStreamingSupported()

	pix, err := v4l2.GetPixFormat(device.Fd())
	if err != nil {
		log.Printf("get format: %s", err)
	} else {
		r.Format = format{
			Width:       pix.Width,
			Height:      pix.Height,
			PixelFormat: fourcc.FourCCString(uint32(pix.PixelFormat)),
		}
	}

	sizes, err := v4l2.GetAllFormatFrameSizes(device.Fd())
	if err != nil {
		log.Printf("get frame sizes: %s", err)
	}
	for _, s := range sizes {
		pf := uint32(s.PixelFormat)
		if pf == fourcc.PixelFmtMJPEG || pf == fourcc.PixelFmtJPEG {
			r.MJPEG = true
		}
		r.Sizes = append(r.Sizes, size{
			PixelFormat: fourcc.FourCCString(pf),
			MaxWidth:    s.Size.MaxWidth,
			MaxHeight:   s.Size.MaxHeight,
		})
	}

	ctrls, err := v4l2.QueryAllExtControls(device.Fd())
	if err != nil {
		log.Printf("query controls: %s", err)
	}
	for _, c := range ctrls {
		r.Controls = append(r.Controls, control{
			ID:      uint32(c.ID),
			Name:    c.Name,
			Min:     int64(c.Minimum),
			Max:     int64(c.Maximum),
			Step:    int64(c.Step),
			Default: int64(c.Default),
			Value:   int64(c.Value),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		log.Fatal(err)
	}
}
