// Package httpclient provides basic http functions
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// downloadClient is shared by downloads, logs can be large so the timeout is generous
var downloadClient = &http.Client{Timeout: 10 * time.Minute}

// RemoteFileInfo contains information about the remote copy of a downloaded file
type RemoteFileInfo struct {
	ETag                  string
	LastModifiedTimestamp int64
	Path                  string
}

func getRemoteFileInfo(url string, resp *http.Response) RemoteFileInfo {
	result := RemoteFileInfo{
		Path: url,
		ETag: resp.Header.Get("ETag"),
	}
	if lastModified := resp.Header.Get("Last-Modified"); len(lastModified) > 0 {
		if parsedTime, err := http.ParseTime(lastModified); err == nil {
			result.LastModifiedTimestamp = parsedTime.Unix()
		}
	}
	return result
}

// DownloadedFile contains information about a file that has been downloaded to the local file system
type DownloadedFile struct {
	RemoteFileInfo RemoteFileInfo
	LocalFilePath  string
	Size           int64
	DownloadedAt   time.Time
}

// DownloadRemoteFile retrieves a file from a url to a local file destination.
// The body is written next to the destination and only renamed into place once complete, so a failed download
// leaves nothing at destinationFileName.
func DownloadRemoteFile(destinationFileName string, url string) (*DownloadedFile, error) {
	resp, err := downloadClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s retrieving %s", resp.Status, url)
	}

	out, err := os.CreateTemp(filepath.Dir(destinationFileName), filepath.Base(destinationFileName)+".*.part")
	if err != nil {
		return nil, err
	}
	partial := out.Name()
	bytesWritten, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(partial, destinationFileName)
	}
	if err != nil {
		_ = os.Remove(partial)
		return nil, fmt.Errorf("saving %s to %s: %w", url, destinationFileName, err)
	}

	return &DownloadedFile{
		RemoteFileInfo: getRemoteFileInfo(url, resp),
		LocalFilePath:  destinationFileName,
		Size:           bytesWritten,
		DownloadedAt:   time.Now(),
	}, nil
}
