package helper

import (
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
)

func HttpGet(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "url get failed: url=%s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("url get failed with status: url=%s, status=%d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ReadFileOrURL read http://.., https://.., file://.. or a plain file name; "-" is stdin
func ReadFileOrURL(s string) ([]byte, error) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return ReadFile(s)
	}

	switch u.Scheme {
	case "http", "https":
		log.Debugf("get %s", u)
		return HttpGet(u.String())
	case "file":
		return ReadFile(u.Path)
	default:
		return nil, errors.Errorf("unsupported url scheme: %s", u.Scheme)
	}
}
