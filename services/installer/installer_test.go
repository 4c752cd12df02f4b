package installer_test

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/services/installer"
	"www.velocidex.com/golang/velodeploy/utils"
)

type MockClient struct {
	body  string
	err   error
	count int
}

func (self *MockClient) Do(req *http.Request) (*http.Response, error) {
	self.count++

	if self.err != nil {
		return nil, self.err
	}

	return &http.Response{
		StatusCode: 200,
		Status:     "OK",
		Body:       ioutil.NopCloser(bytes.NewReader([]byte(self.body))),
	}, nil
}

func makeInstaller(mock *MockClient) *installer.ArtifactInstaller {
	obj := installer.NewArtifactInstaller(config.GetDefaultConfig())
	obj.Client = mock
	obj.Clock = &utils.MockClock{}

	// The test payload is not a real binary.
	obj.SmokeTest = false
	return obj
}

func makeAsset(size int64) *services.ReleaseAsset {
	return &services.ReleaseAsset{
		Version:     "0.7.1",
		DownloadUrl: "https://dl.example.com/velociraptor",
		SizeBytes:   size,
		Platform:    "linux-amd64",
	}
}

func TestInstall(t *testing.T) {
	body := "#!/bin/true pretend binary"
	mock := &MockClient{body: body}
	dest := filepath.Join(t.TempDir(), "bin", "velociraptor")

	artifact, err := makeInstaller(mock).Install(
		context.Background(), makeAsset(int64(len(body))), dest, false)
	require.NoError(t, err)

	assert.Equal(t, dest, artifact.BinaryPath)
	assert.Equal(t, "0.7.1", artifact.Version)
	assert.True(t, artifact.Verified)

	data, err := ioutil.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	// The staging file must be cleaned up.
	_, err = os.Stat(dest + ".download")
	assert.True(t, os.IsNotExist(err))
}

func TestInstallIsIdempotent(t *testing.T) {
	body := "pretend binary"
	mock := &MockClient{body: body}
	dest := filepath.Join(t.TempDir(), "velociraptor")
	obj := makeInstaller(mock)

	_, err := obj.Install(
		context.Background(), makeAsset(int64(len(body))), dest, false)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.count)

	// The second call must not touch the network at all.
	artifact, err := obj.Install(
		context.Background(), makeAsset(int64(len(body))), dest, false)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.count)
	assert.True(t, artifact.Verified)
}

func TestForceReinstalls(t *testing.T) {
	body := "pretend binary"
	mock := &MockClient{body: body}
	dest := filepath.Join(t.TempDir(), "velociraptor")
	obj := makeInstaller(mock)

	_, err := obj.Install(
		context.Background(), makeAsset(int64(len(body))), dest, false)
	require.NoError(t, err)

	_, err = obj.Install(
		context.Background(), makeAsset(int64(len(body))), dest, true)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.count)
}

func TestEmptyDownloadRejected(t *testing.T) {
	mock := &MockClient{body: ""}
	dest := filepath.Join(t.TempDir(), "velociraptor")

	_, err := makeInstaller(mock).Install(
		context.Background(), makeAsset(100), dest, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.VerificationError))

	// Neither the final binary nor the staging file may exist.
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dest + ".download")
	assert.True(t, os.IsNotExist(err))
}

func TestSizeDeviationOnlyWarns(t *testing.T) {
	body := "tiny"
	mock := &MockClient{body: body}
	dest := filepath.Join(t.TempDir(), "velociraptor")

	// Advertised size is wildly off - the download is kept but
	// marked unverified.
	artifact, err := makeInstaller(mock).Install(
		context.Background(), makeAsset(50000000), dest, false)
	require.NoError(t, err)
	assert.False(t, artifact.Verified)

	_, err = os.Stat(dest)
	assert.NoError(t, err)
}

func TestFailedReinstallKeepsOldBinary(t *testing.T) {
	body := "working binary"
	mock := &MockClient{body: body}
	dest := filepath.Join(t.TempDir(), "velociraptor")
	obj := makeInstaller(mock)

	_, err := obj.Install(
		context.Background(), makeAsset(int64(len(body))), dest, false)
	require.NoError(t, err)

	// The forced reinstall fails mid transfer. The previously
	// installed binary must survive untouched.
	mock.err = errors.New("connection reset")
	_, err = obj.Install(
		context.Background(), makeAsset(int64(len(body))), dest, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.DownloadError))

	data, err := ioutil.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}
