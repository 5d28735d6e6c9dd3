package consts

import "time"

const (
	DefaultShotsDir = "shots"
	DefaultInfoFile = "info.json"

	DefaultImageExt = ".jpg"
	DefaultVideoExt = ".avi"

	DefaultFilePerm = 0660
	DefaultDirPerm  = 0750

	// NameLayout names a shot after the time it was taken, with milliseconds.
	NameLayout = "20060102_150405.000"

	// MinInterval is the shortest schedule interval.
	MinInterval = time.Second
)
