package debug

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//
// Debug output is controled by UKDEBUG environment variable, which
// can be a list of selectors (e.g., "TASK;SCHED;SYSCALL").
//

var (
	mu       sync.Mutex
	log      *zap.SugaredLogger
	labels   map[Tselector]bool
	bootName = "ukernel"
)

func init() {
	labels = debugLabels(os.Getenv("UKDEBUG"))
	log = newLogger()
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	cfg.EncodeLevel = nil
	cfg.EncodeCaller = nil
	cfg.LevelKey = ""
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	return zap.New(core).Sugar()
}

func debugLabels(s string) map[Tselector]bool {
	m := make(map[Tselector]bool)
	if s == "" {
		return m
	}
	for _, l := range strings.Split(s, ";") {
		m[Tselector(l)] = true
	}
	return m
}

// SetName sets the name prefixed to every debug line (the kernel boot
// id, once a kernel is constructed).
func SetName(name string) {
	mu.Lock()
	defer mu.Unlock()
	bootName = name
}

// SetSelectors overrides the selectors taken from UKDEBUG.
func SetSelectors(s string) {
	mu.Lock()
	defer mu.Unlock()
	labels = debugLabels(s)
}

func IsLabelSet(label Tselector) bool {
	mu.Lock()
	defer mu.Unlock()
	return labels[label]
}

func DPrintf(label Tselector, format string, v ...interface{}) {
	mu.Lock()
	_, ok := labels[label]
	name := bootName
	mu.Unlock()
	if ok || label == ALWAYS || label == ERROR {
		log.Infof("%v %v %v", name, label, fmt.Sprintf(format, v...))
	}
}

// DFatalf reports a kernel invariant violation and exits.
func DFatalf(format string, v ...interface{}) {
	// Get info for the caller.
	pc, file, line, ok := runtime.Caller(1)
	fnDetails := runtime.FuncForPC(pc)
	if ok && fnDetails != nil {
		log.Fatalf("FATAL %v %v %v:%v %v", bootName, fnDetails.Name(), file, line, fmt.Sprintf(format, v...))
	} else {
		log.Fatalf("FATAL %v (missing details) %v", bootName, fmt.Sprintf(format, v...))
	}
}
