// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package log is the leveled logger used across the parachain packages.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = map[Level]string{
	LevelError: "ERRO",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBU",
	LevelTrace: "TRCE",
}

var levelColor = map[Level]*color.Color{
	LevelError: color.New(color.FgRed, color.Bold),
	LevelWarn:  color.New(color.FgYellow),
	LevelInfo:  color.New(color.FgCyan),
	LevelDebug: color.New(color.FgGreen),
	LevelTrace: color.New(color.FgWhite),
}

var global = struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}{level: LevelInfo, out: os.Stderr}

// SetGlobalLevel sets the verbosity threshold shared by every Logger
// created with NewFromGlobal.
func SetGlobalLevel(l Level) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.level = l
}

// SetGlobalWriter redirects every Logger created with NewFromGlobal.
func SetGlobalWriter(w io.Writer) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.out = w
}

// Context is a key=value pair attached to every line a Logger emits.
type Context struct {
	Key   string
	Value string
}

// AddContext builds a Context pair, e.g. AddContext("pkg", "backing").
func AddContext(key, value string) Context {
	return Context{Key: key, Value: value}
}

// Logger writes leveled, context-tagged lines.
type Logger struct {
	contexts []Context
}

// NewFromGlobal builds a Logger sharing the package-global level and
// output writer, tagged with the given contexts.
func NewFromGlobal(contexts ...Context) *Logger {
	return &Logger{contexts: contexts}
}

func (l *Logger) log(level Level, format string, args ...any) {
	global.mu.Lock()
	threshold := global.level
	out := global.out
	global.mu.Unlock()

	if level > threshold {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	b.WriteByte(' ')
	b.WriteString(levelColor[level].Sprint(levelNames[level]))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf(format, args...))
	for _, c := range l.contexts {
		fmt.Fprintf(&b, " %s=%s", c.Key, c.Value)
	}
	b.WriteByte('\n')
	fmt.Fprint(out, b.String())
}

func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Tracef(format string, args ...any) { l.log(LevelTrace, format, args...) }

// With returns a child Logger carrying additional contexts.
func (l *Logger) With(contexts ...Context) *Logger {
	merged := make([]Context, 0, len(l.contexts)+len(contexts))
	merged = append(merged, l.contexts...)
	merged = append(merged, contexts...)
	return &Logger{contexts: merged}
}
