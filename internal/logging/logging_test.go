package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/volume-tools-mcp/internal/config"
)

type recordingSink struct {
	lines []string
}

func (r *recordingSink) DisplayText(s string)      { r.lines = append(r.lines, "text:"+s) }
func (r *recordingSink) DisplayErrorText(s string) { r.lines = append(r.lines, "error:"+s) }
func (r *recordingSink) DisplayWarningText(s string) {
	r.lines = append(r.lines, "warning:"+s)
}
func (r *recordingSink) DisplayGenericOutputText(s string) { r.lines = append(r.lines, "generic:"+s) }
func (r *recordingSink) DisplayDebugText(s string)         { r.lines = append(r.lines, "debug:"+s) }

func TestSlogSink_LevelsAndTrim(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	sink.DisplayText("hello\n")
	sink.DisplayErrorText("bad\n\n")
	sink.DisplayWarningText("careful \n")
	sink.DisplayGenericOutputText("generic")
	sink.DisplayDebugText("details\r\n")

	out := buf.String()
	assert.Contains(t, out, `level=INFO msg=hello`)
	assert.Contains(t, out, `level=ERROR msg=bad`)
	assert.Contains(t, out, `level=WARN msg=careful`)
	assert.Contains(t, out, `level=INFO msg=generic`)
	assert.Contains(t, out, `level=DEBUG msg=details`)
	assert.NotContains(t, out, `\n`)
}

func TestSetGlobal_ReturnsPrevious(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}

	orig := SetGlobal(first)
	defer SetGlobal(orig)

	prev := SetGlobal(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, Global())
}

func TestUse_RestoresSink(t *testing.T) {
	outer := &recordingSink{}
	inner := &recordingSink{}

	orig := SetGlobal(outer)
	defer SetGlobal(orig)

	Use(inner, func() {
		Infof("inside %d", 1)
	})
	Infof("outside")

	assert.Equal(t, []string{"text:inside 1"}, inner.lines)
	assert.Equal(t, []string{"text:outside"}, outer.lines)
}

func TestUse_RestoresSinkOnPanic(t *testing.T) {
	outer := &recordingSink{}
	orig := SetGlobal(outer)
	defer SetGlobal(orig)

	func() {
		defer func() { _ = recover() }()
		Use(&recordingSink{}, func() { panic("boom") })
	}()
	assert.Same(t, outer, Global())
}

func TestWarningDisplay(t *testing.T) {
	sink := &recordingSink{}
	orig := SetGlobal(sink)
	defer SetGlobal(orig)
	defer SetWarningDisplay(true)

	Warnf("first")
	SetWarningDisplay(false)
	Warnf("hidden")
	Errorf("errors still shown")
	Debugf("so is debug")

	assert.Equal(t, []string{"warning:first", "error:errors still shown", "debug:so is debug"}, sink.lines)
}

func TestSetup(t *testing.T) {
	orig := Global()
	origDefault := slog.Default()
	defer func() {
		SetGlobal(orig)
		slog.SetDefault(origDefault)
	}()

	tests := []struct {
		name     string
		settings config.LoggingSettings
		wantErr  bool
	}{
		{
			name:     "console logger",
			settings: config.LoggingSettings{Level: config.LogLevelInfo, Type: config.LogTypeConsole},
		},
		{
			name: "file logger with rotation",
			settings: config.LoggingSettings{
				Level:      config.LogLevelDebug,
				Type:       config.LogTypeFile,
				FilePath:   filepath.Join(t.TempDir(), "volume-tools.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		{
			name:     "file logger without path",
			settings: config.LoggingSettings{Level: config.LogLevelInfo, Type: config.LogTypeFile},
			wantErr:  true,
		},
		{
			name:     "unsupported log type",
			settings: config.LoggingSettings{Level: config.LogLevelInfo, Type: "syslog"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, cleanup, err := Setup(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			defer cleanup()

			Debugf("debug message")
			Infof("info message")

			if tt.settings.Type == config.LogTypeFile {
				require.NoError(t, cleanup())
				data, err := os.ReadFile(tt.settings.FilePath)
				require.NoError(t, err)
				assert.True(t, strings.Contains(string(data), `"msg":"info message"`))
				assert.True(t, strings.Contains(string(data), `"msg":"debug message"`))
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(config.LogLevelDebug))
	assert.Equal(t, slog.LevelWarn, ParseLevel(config.LogLevelWarning))
	assert.Equal(t, slog.LevelError, ParseLevel(config.LogLevelError))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestSlogSink_WarningDisplayOff(t *testing.T) {
	var buf bytes.Buffer
	orig := SetGlobal(NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil))))
	defer SetGlobal(orig)
	defer SetWarningDisplay(true)

	SetWarningDisplay(false)
	Global().DisplayWarningText("hidden")
	Global().DisplayText("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
}
