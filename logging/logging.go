package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"www.velocidex.com/golang/velodeploy/config"
)

var (
	SuppressLogging = false
	NoColor         = false

	GenericComponent   = "Velodeploy"
	ToolComponent      = "Tool"
	InstallerComponent = "Installer"
	ServiceComponent   = "Service"

	// The node global log manager.
	Manager *LogManager

	mu sync.Mutex

	tag_regex = regexp.MustCompile(`<(green|red|yellow|cyan)>(.*?)</>`)

	colors = map[string]string{
		"green":  "\033[32m",
		"red":    "\033[31m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
	}
)

type LogContext struct {
	*logrus.Logger
}

func (self *LogContext) Info(format string, v ...interface{}) {
	if self.Logger != nil {
		self.Logger.Info(fmt.Sprintf(format, v...))
	}
}

func (self *LogContext) Warn(format string, v ...interface{}) {
	if self.Logger != nil {
		self.Logger.Warn(fmt.Sprintf(format, v...))
	}
}

func (self *LogContext) Error(format string, v ...interface{}) {
	if self.Logger != nil {
		self.Logger.Error(fmt.Sprintf(format, v...))
	}
}

func (self *LogContext) Debug(format string, v ...interface{}) {
	if self.Logger != nil {
		self.Logger.Debug(fmt.Sprintf(format, v...))
	}
}

type LogManager struct {
	mu       sync.Mutex
	contexts map[*string]*LogContext
}

// GetLogger creates a new logger for the component, or returns the
// cached one.
func (self *LogManager) GetLogger(
	config_obj *config.Config, component *string) *LogContext {
	self.mu.Lock()
	defer self.mu.Unlock()

	ctx, pres := self.contexts[component]
	if !pres {
		ctx = self.makeNewComponent(config_obj, component)
		self.contexts[component] = ctx
	}
	return ctx
}

func (self *LogManager) Reset() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.contexts = make(map[*string]*LogContext)
}

func (self *LogManager) makeNewComponent(
	config_obj *config.Config, component *string) *LogContext {

	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Level = logrus.InfoLevel
	logger.Formatter = &Formatter{stderr_is_tty}

	if SuppressLogging {
		logger.Out = nopWriter{}
	}

	// Write a copy of all messages into the logging directory if
	// the config specifies one.
	if config_obj != nil &&
		config_obj.Logging != nil &&
		config_obj.Logging.OutputDirectory != "" {

		base := filepath.Join(
			config_obj.Logging.OutputDirectory, "velodeploy")
		if config_obj.Logging.SeparateLogsPerComponent {
			base += "_" + *component
		}

		pathmap := lfshook.PathMap{
			logrus.DebugLevel: base + "_debug.log",
			logrus.InfoLevel:  base + "_info.log",
			logrus.WarnLevel:  base + "_info.log",
			logrus.ErrorLevel: base + "_error.log",
		}

		hook := lfshook.NewHook(pathmap, &logrus.JSONFormatter{
			DisableHTMLEscape: true,
		})
		logger.Hooks.Add(hook)
	}

	return &LogContext{logger}
}

func GetLogger(config_obj *config.Config, component *string) *LogContext {
	mu.Lock()
	defer mu.Unlock()

	if Manager == nil {
		Manager = &LogManager{
			contexts: make(map[*string]*LogContext),
		}
	}
	return Manager.GetLogger(config_obj, component)
}

// InitLogging ensures the logging directory exists and resets any
// cached components so they pick up the new config.
func InitLogging(config_obj *config.Config) error {
	mu.Lock()
	defer mu.Unlock()

	Manager = &LogManager{
		contexts: make(map[*string]*LogContext),
	}

	if config_obj.Logging != nil &&
		config_obj.Logging.OutputDirectory != "" {
		err := os.MkdirAll(config_obj.Logging.OutputDirectory, 0700)
		if err != nil {
			return fmt.Errorf(
				"Unable to create logging directory %v: %w",
				config_obj.Logging.OutputDirectory, err)
		}
	}

	return nil
}

type nopWriter struct{}

func (self nopWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

// Clear any color markup from the message.
func clearTag(message string) string {
	return tag_regex.ReplaceAllString(message, "$2")
}

func colorTag(message string) string {
	return tag_regex.ReplaceAllStringFunc(message, func(hit string) string {
		matches := tag_regex.FindStringSubmatch(hit)
		return colors[matches[1]] + matches[2] + "\033[0m"
	})
}

var stderr_is_tty = isatty.IsTerminal(os.Stderr.Fd())

// Renders the messages to the terminal - color markup tags are
// expanded on a tty and stripped otherwise.
type Formatter struct {
	is_tty bool
}

func (self *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	message := entry.Message
	if self.is_tty && !NoColor {
		message = colorTag(message)
	} else {
		message = clearTag(message)
	}

	return []byte(fmt.Sprintf("[%v] %v %v\n",
		entry.Level.String(),
		entry.Time.Format("2006-01-02T15:04:05Z07:00"),
		message)), nil
}
