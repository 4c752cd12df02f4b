/*
Velociraptor - Dig Deeper
Copyright (C) 2019-2025 Rapid7 Inc.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/constants"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/services/release"
	"www.velocidex.com/golang/velodeploy/utils"
)

// ArtifactInstaller downloads release assets into place. Downloads
// always go through a temp sibling file so a crash mid-transfer can
// never corrupt a previously working installation.
type ArtifactInstaller struct {
	config_obj *config.Config

	Client release.HTTPClient
	Clock  utils.Clock

	// Tolerated relative deviation from the advertised asset
	// size. Upstream size metadata can be stale so a mismatch
	// within tolerance only warns.
	SizeTolerance float64

	// Run the downloaded binary with a "version" argument as an
	// executability check.
	SmokeTest bool
}

func NewArtifactInstaller(config_obj *config.Config) *ArtifactInstaller {
	return &ArtifactInstaller{
		config_obj:    config_obj,
		Client:        release.NewHTTPClient(),
		Clock:         utils.RealClock{},
		SizeTolerance: 0.1,
		SmokeTest:     true,
	}
}

func (self *ArtifactInstaller) Install(
	ctx context.Context, asset *services.ReleaseAsset,
	destination_path string, force bool) (*services.InstalledArtifact, error) {

	logger := logging.GetLogger(self.config_obj, &logging.InstallerComponent)

	if !force {
		stat, err := os.Stat(destination_path)
		if err == nil && stat.Size() > 0 {
			logger.Info("Binary already present at <green>%v</> (%v), "+
				"skipping download. Use --force to reinstall.",
				destination_path,
				humanize.Bytes(uint64(stat.Size())))

			return &services.InstalledArtifact{
				BinaryPath:  destination_path,
				Version:     asset.Version,
				InstalledAt: stat.ModTime(),
				Verified:    true,
			}, nil
		}
	}

	err := os.MkdirAll(filepath.Dir(destination_path), 0700)
	if err != nil {
		return nil, utils.Wrapf(utils.IOError,
			"Unable to create install directory %v: %v",
			filepath.Dir(destination_path), err)
	}

	temp_path := destination_path + ".download"

	// Whatever happens below, never leave a partial download
	// behind.
	defer func() {
		_ = os.Remove(temp_path)
	}()

	err = self.download(ctx, asset, temp_path)
	if err != nil {
		return nil, err
	}

	verified, err := self.verify(asset, temp_path)
	if err != nil {
		return nil, err
	}

	// The binary only becomes visible at the final path after
	// verification.
	err = os.Rename(temp_path, destination_path)
	if err != nil {
		return nil, utils.Wrapf(utils.IOError,
			"Unable to move binary into %v: %v", destination_path, err)
	}

	if runtime.GOOS != "windows" {
		err = os.Chmod(destination_path, 0755)
		if err != nil {
			return nil, utils.Wrapf(utils.IOError,
				"Unable to mark %v executable: %v", destination_path, err)
		}
	}

	if self.SmokeTest {
		// The invocation convention may differ between releases
		// so a failure here is not conclusive.
		out, err := exec.CommandContext(
			ctx, destination_path, "version").CombinedOutput()
		if err != nil {
			logger.Warn("Smoke test of %v failed (%v): %v - "+
				"continuing anyway", destination_path, err,
				firstLine(out))
		}
	}

	logger.Info("Installed <green>%v</> release %v",
		destination_path, asset.Version)

	return &services.InstalledArtifact{
		BinaryPath:  destination_path,
		Version:     asset.Version,
		InstalledAt: self.Clock.Now(),
		Verified:    verified,
	}, nil
}

func (self *ArtifactInstaller) download(
	ctx context.Context, asset *services.ReleaseAsset,
	temp_path string) error {

	logger := logging.GetLogger(self.config_obj, &logging.InstallerComponent)
	logger.Info("Downloading <green>%v</> (%v) FROM <cyan>%v</>",
		asset.Version, humanize.Bytes(uint64(asset.SizeBytes)),
		asset.DownloadUrl)

	request, err := http.NewRequestWithContext(
		ctx, "GET", asset.DownloadUrl, nil)
	if err != nil {
		return err
	}
	request.Header.Set("User-Agent", constants.USER_AGENT)

	res, err := self.Client.Do(request)
	if err != nil {
		return utils.Wrapf(utils.DownloadError,
			"Unable to download from %v: %v - check network connectivity",
			asset.DownloadUrl, err)
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		return utils.Wrapf(utils.DownloadError,
			"Unable to download from %v: %v",
			asset.DownloadUrl, res.Status)
	}

	fd, err := os.OpenFile(temp_path,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0700)
	if err != nil {
		return utils.Wrapf(utils.IOError,
			"Unable to create %v: %v", temp_path, err)
	}
	defer fd.Close()

	sha_sum := sha256.New()
	_, err = utils.Copy(ctx, fd, io.TeeReader(res.Body, sha_sum))
	if err != nil {
		return utils.Wrapf(utils.DownloadError,
			"Transfer from %v interrupted: %v", asset.DownloadUrl, err)
	}

	logger.Info("Downloaded %v sha256 %v", temp_path,
		hex.EncodeToString(sha_sum.Sum(nil)))

	return nil
}

// verify applies the post download checks. A zero byte file is the
// only hard failure - a usable binary beats strict rejection since
// upstream size metadata can be stale.
func (self *ArtifactInstaller) verify(
	asset *services.ReleaseAsset, temp_path string) (bool, error) {

	logger := logging.GetLogger(self.config_obj, &logging.InstallerComponent)

	stat, err := os.Stat(temp_path)
	if err != nil {
		return false, utils.Wrapf(utils.IOError,
			"Unable to stat %v: %v", temp_path, err)
	}

	if stat.Size() == 0 {
		return false, utils.Wrapf(utils.VerificationError,
			"Downloaded file %v is empty - the mirror may be broken, "+
				"try again later", temp_path)
	}

	if asset.SizeBytes > 0 {
		deviation := stat.Size() - asset.SizeBytes
		if deviation < 0 {
			deviation = -deviation
		}

		if float64(deviation) > self.SizeTolerance*float64(asset.SizeBytes) {
			logger.Warn("Downloaded size %v deviates from advertised "+
				"size %v by more than %.0f%% - keeping it anyway",
				humanize.Bytes(uint64(stat.Size())),
				humanize.Bytes(uint64(asset.SizeBytes)),
				self.SizeTolerance*100)
			return false, nil
		}
	}

	return true, nil
}

func firstLine(out []byte) string {
	for i, c := range out {
		if c == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
