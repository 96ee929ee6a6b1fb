package net

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

var ErrorURLNotFound = errors.New("URL not found")

// Download retrieves the content of url into the file at path.
// Used for pulling model artifacts from a registry URL.
func Download(url string, path string) (retErr error) {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating file: %s", path)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	c, err := GetHTTPClient()
	if err != nil {
		return errors.Wrap(err, "error creating HTTP client")
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "error creating HTTP Get request")
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error downloading: %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("error downloading file (status: %d - %s): %s", resp.StatusCode, resp.Status, url)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return errors.Wrap(err, "error saving downloaded content to file")
	}

	return nil
}
