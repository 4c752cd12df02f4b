package firewall

import (
	"context"

	errors "github.com/go-errors/errors"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/logging"
)

// Mechanism is one way of manipulating the host firewall. Each
// platform supplies an ordered list - the first one that works wins.
type Mechanism interface {
	Name() string
	HasRule(ctx context.Context, rule_name string) (bool, error)
	AddRule(ctx context.Context, rule_name string, port uint32) error
	DeleteRule(ctx context.Context, rule_name string) error
}

type Manager struct {
	config_obj *config.Config

	Mechanisms []Mechanism
}

func NewManager(config_obj *config.Config) *Manager {
	return &Manager{
		config_obj: config_obj,
		Mechanisms: platformMechanisms(config_obj),
	}
}

// OpenPort adds a named inbound TCP allow rule. Adding a rule that
// already exists is a no-op. All errors here are advisory - the
// deployment works locally without firewall changes.
func (self *Manager) OpenPort(
	ctx context.Context, port uint32, rule_name string) error {

	logger := logging.GetLogger(self.config_obj, &logging.ServiceComponent)

	if len(self.Mechanisms) == 0 {
		return errors.New(
			"No firewall mechanism available on this platform")
	}

	var last_err error
	for _, mechanism := range self.Mechanisms {
		pres, err := mechanism.HasRule(ctx, rule_name)
		if err == nil && pres {
			logger.Info("Firewall rule %q already present (%v)",
				rule_name, mechanism.Name())
			return nil
		}

		err = mechanism.AddRule(ctx, rule_name, port)
		if err == nil {
			logger.Info("Opened port <green>%v</> via %v",
				port, mechanism.Name())
			return nil
		}

		logger.Warn("Firewall mechanism %v failed: %v - trying next",
			mechanism.Name(), err)
		last_err = err
	}

	return errors.Errorf(
		"All firewall mechanisms failed for rule %q: %v",
		rule_name, last_err)
}

func (self *Manager) ClosePort(
	ctx context.Context, rule_name string) error {

	var last_err error
	for _, mechanism := range self.Mechanisms {
		pres, err := mechanism.HasRule(ctx, rule_name)
		if err != nil || !pres {
			continue
		}

		err = mechanism.DeleteRule(ctx, rule_name)
		if err == nil {
			return nil
		}
		last_err = err
	}

	return last_err
}
