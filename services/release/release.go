package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/constants"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/utils"
)

// HTTPClient is the part of http.Client we use - tests provide a
// mock.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type githubReleasesAPI struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadUrl string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	} `json:"assets"`
}

// GithubResolver selects the right binary from the latest upstream
// GitHub release.
type GithubResolver struct {
	config_obj *config.Config

	Client     HTTPClient
	ReleaseUrl string
}

func NewGithubResolver(config_obj *config.Config) *GithubResolver {
	return &GithubResolver{
		config_obj: config_obj,
		Client:     NewHTTPClient(),
		ReleaseUrl: fmt.Sprintf(
			"https://api.github.com/repos/%s/releases/latest",
			constants.GITHUB_PROJECT),
	}
}

func (self *GithubResolver) Resolve(
	ctx context.Context, platform_hint string) (
	*services.ReleaseAsset, error) {

	platform := platform_hint
	if platform == "" {
		platform = utils.GetPlatform()
	}

	logger := logging.GetLogger(self.config_obj, &logging.ToolComponent)
	logger.Info("Resolving latest release for <green>%v</> from %v",
		platform, self.ReleaseUrl)

	request, err := http.NewRequestWithContext(
		ctx, "GET", self.ReleaseUrl, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("User-Agent", constants.USER_AGENT)

	res, err := self.Client.Do(request)
	if err != nil {
		return nil, utils.Wrapf(utils.NetworkError,
			"While fetching release index %v: %v - check network "+
				"connectivity", self.ReleaseUrl, err)
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		return nil, utils.Wrapf(utils.NetworkError,
			"Release index %v returned %v", self.ReleaseUrl, res.Status)
	}

	response, err := utils.ReadAllWithLimit(res.Body, constants.MAX_MEMORY)
	if err != nil {
		return nil, utils.Wrapf(utils.NetworkError,
			"While reading release index %v: %v", self.ReleaseUrl, err)
	}

	api_obj := &githubReleasesAPI{}
	err = json.Unmarshal(response, api_obj)
	if err != nil {
		return nil, utils.Wrapf(utils.NetworkError,
			"While parsing release index %v: %v", self.ReleaseUrl, err)
	}

	version := strings.TrimPrefix(api_obj.TagName, "v")

	suffix := "-" + platform
	if strings.HasPrefix(platform, "windows") {
		suffix += ".exe"
	}

	for _, asset := range api_obj.Assets {
		if !strings.HasSuffix(asset.Name, suffix) {
			continue
		}

		// Skip the debug and offline collector builds.
		if strings.Contains(asset.Name, "debug") ||
			strings.Contains(asset.Name, "collector") {
			continue
		}

		logger.Info("Selected asset <green>%v</> (release %v)",
			asset.Name, version)

		return &services.ReleaseAsset{
			Version:     version,
			DownloadUrl: asset.BrowserDownloadUrl,
			SizeBytes:   asset.Size,
			Platform:    platform,
		}, nil
	}

	return nil, utils.Wrapf(utils.NotFoundError,
		"No asset matching %q in release %v", suffix, api_obj.TagName)
}

// NewHTTPClient builds the client used against the release index and
// download mirrors.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   300 * time.Second,
				KeepAlive: 300 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       300 * time.Second,
			TLSHandshakeTimeout:   100 * time.Second,
			ExpectContinueTimeout: 10 * time.Second,
			ResponseHeaderTimeout: 100 * time.Second,
		},
	}
}
