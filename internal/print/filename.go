package print

import (
	"fmt"
	"path"
	"time"
)

// Filenames embed the item count so an operator can sanity-check a received
// file without opening it: {batchId}-{yyyyMMddHHmmssSSS}-{count}.{ext}.

func ManifestFilename(batchID string, generatedAt time.Time, itemCount int) string {
	return fmt.Sprintf("%s-%s-%d.psv", batchID, timestampComponent(generatedAt), itemCount)
}

func ArchiveFilename(batchID string, generatedAt time.Time, itemCount int) string {
	return fmt.Sprintf("%s-%s-%d.zip", batchID, timestampComponent(generatedAt), itemCount)
}

func timestampComponent(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%03d", t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond))
}

// PhotoPath maps a photo's source location to its archive-relative path,
// keeping the original extension: {batchId}-{requestId}.{ext}. Batch id and
// request id are both globally unique so the path cannot collide within or
// across archives.
func PhotoPath(batchID, requestID, photoLocation string) string {
	ext := path.Ext(photoLocation)
	return fmt.Sprintf("%s-%s%s", batchID, requestID, ext)
}
