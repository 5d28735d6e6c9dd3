package v4l2

import "testing"

func TestFourCC(t *testing.T) {
	if PixelFmtMJPEG != 0x47504a4d {
		t.Fatalf("MJPG = %#x", PixelFmtMJPEG)
	}
	if s := FourCCString(PixelFmtMJPEG); s != "MJPG" {
		t.Fatalf("FourCCString = %q", s)
	}
	if s := FourCCString(FourCC("Y8")); s != "Y8" {
		t.Fatalf("short code = %q", s)
	}
}

func TestCapabilityPrefersDeviceCaps(t *testing.T) {
	c := Capability{
		Capabilities: CapVideoCapture | CapStreaming | CapDeviceCaps,
		DeviceCaps:   CapVideoCapture,
	}
	if !c.IsVideoCaptureSupported() {
		t.Fatal("capture should be supported")
	}
	if c.IsStreamingSupported() {
		t.Fatal("streaming comes from device caps, which lack it")
	}

	c = Capability{Capabilities: CapVideoCapture | CapStreaming}
	if !c.IsStreamingSupported() {
		t.Fatal("without DEVICE_CAPS the global set applies")
	}
}
