package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ComputeIdentity derives the stable asset identity: the hex MD5 of the
// file contents concatenated with the owner id. Two owners importing
// the same bytes therefore get distinct assets.
func ComputeIdentity(path string, ownerID int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)) + strconv.FormatInt(ownerID, 10), nil
}
