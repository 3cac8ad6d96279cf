package export

import (
	"path/filepath"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// FileName names the export of a job:
// <export time, 14 digits>-<milliseconds>-<job id>-<meeting time>.ttl
// Both times are taken in UTC with millisecond precision.
func FileName(exportTime time.Time, jobID string, meetingTime time.Time) string {
	ts := vocab.CompactTime(exportTime)
	return ts[:14] + "-" + ts[14:] + "-" + jobID + "-" + vocab.CompactTime(meetingTime) + ".ttl"
}

// Path joins the export directory and a file name.
func Path(dir, name string) string {
	return filepath.Join(dir, name)
}
