package config

import (
	"os"
	"path/filepath"

	"www.velocidex.com/golang/velodeploy/utils"
)

// Validate rejects malformed parameter sets at the boundary with a
// field level error, before any component acts on them.
func (self *DeploymentParameters) Validate() error {
	switch self.DeploymentType {
	case DeploymentStandalone, DeploymentServer, DeploymentClient:
	default:
		return utils.Wrapf(utils.ValidationError,
			"deployment_type: unknown type %q (expected %v, %v or %v)",
			self.DeploymentType, DeploymentStandalone,
			DeploymentServer, DeploymentClient)
	}

	if err := validPort("bind_port", self.BindPort); err != nil {
		return err
	}

	if err := validPort("gui_bind_port", self.GUIBindPort); err != nil {
		return err
	}

	if self.BindPort == self.GUIBindPort {
		return utils.Wrapf(utils.ValidationError,
			"gui_bind_port: must differ from bind_port (both %v)",
			self.BindPort)
	}

	if !filepath.IsAbs(self.InstallDirectory) {
		return utils.Wrapf(utils.ValidationError,
			"install_directory: must be an absolute path, not %q",
			self.InstallDirectory)
	}

	if self.DataDirectory != "" && !filepath.IsAbs(self.DataDirectory) {
		return utils.Wrapf(utils.ValidationError,
			"data_directory: must be an absolute path, not %q",
			self.DataDirectory)
	}

	if self.AdminUsername == "" {
		return utils.Wrap(utils.ValidationError,
			"admin_username: must be set")
	}

	switch self.CertificateType {
	case CertSelfSigned:
		if self.CertificateDurationYears < 1 {
			return utils.Wrapf(utils.ValidationError,
				"certificate_duration_years: must be at least 1, not %v",
				self.CertificateDurationYears)
		}

	case CertCustom:
		for _, item := range []struct {
			field, value string
		}{
			{"certificate_path", self.CertificatePath},
			{"private_key_path", self.PrivateKeyPath},
		} {
			if item.value == "" {
				return utils.Wrapf(utils.ValidationError,
					"%v: required for the Custom certificate type",
					item.field)
			}
			_, err := os.Stat(item.value)
			if err != nil {
				return utils.Wrapf(utils.ValidationError,
					"%v: %q is not readable: %v",
					item.field, item.value, err)
			}
		}

	case CertLetsEncrypt:
		if self.PublicDNSName == "" {
			return utils.Wrap(utils.ValidationError,
				"public_dns_name: required for the LetsEncrypt "+
					"certificate type")
		}

	default:
		return utils.Wrapf(utils.ValidationError,
			"certificate_type: unknown type %q", self.CertificateType)
	}

	return nil
}

func validPort(field string, port uint32) error {
	if port < 1 || port > 65535 {
		return utils.Wrapf(utils.ValidationError,
			"%v: %v is outside the valid range 1-65535", field, port)
	}
	return nil
}
