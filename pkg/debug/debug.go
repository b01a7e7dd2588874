// Package debug controls log output for every package of the module.
package debug

import (
	"fmt"
	"io"
	"strings"

	"github.com/jfjallid/golog"
)

const modulePath = "github.com/ineffectivecoder/gosmbclient/"

// Packages lists the loggers SetLevel configures, by short name.
var Packages = []string{
	"pkg/debug",
	"pkg/smb",
	"pkg/auth",
	"pkg/dcerpc",
	"pkg/srvsvc",
	"pkg/wkssvc",
	"pkg/pipe",
	"pkg/smbclient",
}

// Verbose is set by SetLevel when debug output is enabled.
var Verbose bool

var log = golog.Get(modulePath + "pkg/debug")

// Printf prints debug output if verbose mode is enabled
func Printf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Println prints debug output if verbose mode is enabled
func Println(args ...interface{}) {
	log.Debugf("%s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// ParseLevel maps error, notice, info, debug or none to a golog level.
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(name) {
	case "none", "off":
		return golog.LevelNone, nil
	case "error":
		return golog.LevelError, nil
	case "notice", "":
		return golog.LevelNotice, nil
	case "info":
		return golog.LevelInfo, nil
	case "debug":
		return golog.LevelDebug, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// SetLevel applies the named level to every package logger.
func SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	flags := golog.LstdFlags
	if level == golog.LevelDebug {
		flags |= golog.Lshortfile
	}
	var out, errOut io.Writer = golog.DefaultOutput, golog.DefaultErrOutput
	if level == golog.LevelNone {
		out, errOut = golog.NoOutput, golog.NoOutput
	}
	for _, p := range Packages {
		golog.Set(modulePath+p, p[strings.LastIndex(p, "/")+1:], level, flags, out, errOut)
	}
	Verbose = level == golog.LevelDebug
	return nil
}
