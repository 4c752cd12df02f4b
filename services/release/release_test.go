package release_test

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/services/release"
	"www.velocidex.com/golang/velodeploy/utils"
)

type MockClient struct {
	response string
	status   int
	err      error

	requests []string
}

func (self *MockClient) Do(req *http.Request) (*http.Response, error) {
	self.requests = append(self.requests, req.URL.String())

	if self.err != nil {
		return nil, self.err
	}

	status := self.status
	if status == 0 {
		status = 200
	}

	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body: ioutil.NopCloser(
			bytes.NewReader([]byte(self.response))),
	}, nil
}

const release_index = `
{
  "tag_name": "v0.7.1",
  "assets": [
    {
      "name": "velociraptor-v0.7.1-debug-windows-amd64.exe",
      "browser_download_url": "https://dl.example.com/debug.exe",
      "size": 90000000
    },
    {
      "name": "velociraptor-collector-v0.7.1-windows-amd64.exe",
      "browser_download_url": "https://dl.example.com/collector.exe",
      "size": 20000000
    },
    {
      "name": "velociraptor-v0.7.1-windows-amd64.exe",
      "browser_download_url": "https://dl.example.com/windows.exe",
      "size": 40000000
    },
    {
      "name": "velociraptor-v0.7.1-linux-amd64",
      "browser_download_url": "https://dl.example.com/linux",
      "size": 50000000
    }
  ]
}
`

func makeResolver(mock *MockClient) *release.GithubResolver {
	resolver := release.NewGithubResolver(config.GetDefaultConfig())
	resolver.Client = mock
	return resolver
}

func TestPlatformSelection(t *testing.T) {
	mock := &MockClient{response: release_index}
	resolver := makeResolver(mock)

	asset, err := resolver.Resolve(context.Background(), "windows-amd64")
	require.NoError(t, err)

	// The debug and collector variants also end in
	// -windows-amd64.exe but must never be selected.
	assert.Equal(t, "https://dl.example.com/windows.exe", asset.DownloadUrl)
	assert.Equal(t, "0.7.1", asset.Version)
	assert.Equal(t, int64(40000000), asset.SizeBytes)
	assert.Equal(t, "windows-amd64", asset.Platform)

	asset, err = resolver.Resolve(context.Background(), "linux-amd64")
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example.com/linux", asset.DownloadUrl)
}

func TestNoMatchingAsset(t *testing.T) {
	mock := &MockClient{response: release_index}
	resolver := makeResolver(mock)

	_, err := resolver.Resolve(context.Background(), "plan9-mips")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.NotFoundError))
	assert.Contains(t, err.Error(), "plan9-mips")
}

func TestTransportFailure(t *testing.T) {
	mock := &MockClient{err: errors.New("connection refused")}
	resolver := makeResolver(mock)

	_, err := resolver.Resolve(context.Background(), "linux-amd64")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.NetworkError))
}

func TestServerError(t *testing.T) {
	mock := &MockClient{status: 403, response: "rate limited"}
	resolver := makeResolver(mock)

	_, err := resolver.Resolve(context.Background(), "linux-amd64")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.NetworkError))
}

func TestMalformedIndex(t *testing.T) {
	mock := &MockClient{response: "<html>not json</html>"}
	resolver := makeResolver(mock)

	_, err := resolver.Resolve(context.Background(), "linux-amd64")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.NetworkError))
}
