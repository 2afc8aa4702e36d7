package gldevice

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/midgard-gfx/internal/logger"
)

const (
	khrDebug       = "GL_KHR_debug"
	arbDebugOutput = "GL_ARB_debug_output"
)

// extensions returns the extension names advertised by the current context.
func extensions() map[string]bool {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	exts := make(map[string]bool, n)
	for i := uint32(0); i < uint32(n); i++ {
		exts[gl.GoStr(gl.GetStringi(gl.EXTENSIONS, i))] = true
	}
	return exts
}

// installDebugCallback routes driver debug messages to the logger. It
// returns false when the driver advertises neither debug extension, in
// which case no callback entry point was loaded and none may be called.
func installDebugCallback() bool {
	exts := extensions()
	switch {
	case exts[khrDebug]:
		gl.Enable(gl.DEBUG_OUTPUT)
		// Messages arrive on the calling thread, inside the failing call.
		gl.Enable(gl.DEBUG_OUTPUT_SYNCHRONOUS)
		gl.DebugMessageCallback(logDebugMessage, nil)
	case exts[arbDebugOutput]:
		gl.Enable(gl.DEBUG_OUTPUT_SYNCHRONOUS_ARB)
		gl.DebugMessageCallbackARB(logDebugMessage, nil)
	default:
		return false
	}
	return true
}

func logDebugMessage(source, gltype, id, severity uint32, _ int32, message string, _ unsafe.Pointer) {
	lvl, fields := debugEntry(source, gltype, id, severity, message)
	if ce := logger.Log.Check(lvl, "gl debug message"); ce != nil {
		ce.Write(fields...)
	}
}

// debugEntry maps a debug message to a log level and fields.
func debugEntry(source, gltype, id, severity uint32, message string) (zapcore.Level, []zap.Field) {
	lvl := zapcore.DebugLevel
	switch severity {
	case gl.DEBUG_SEVERITY_HIGH:
		lvl = zapcore.ErrorLevel
	case gl.DEBUG_SEVERITY_MEDIUM, gl.DEBUG_SEVERITY_LOW:
		lvl = zapcore.WarnLevel
	}
	return lvl, []zap.Field{
		zap.String("source", debugSource(source)),
		zap.String("type", debugType(gltype)),
		zap.String("severity", debugSeverity(severity)),
		zap.Uint32("id", id),
		zap.String("message", message),
	}
}

func debugSource(v uint32) string {
	switch v {
	case gl.DEBUG_SOURCE_API:
		return "api"
	case gl.DEBUG_SOURCE_WINDOW_SYSTEM:
		return "window-system"
	case gl.DEBUG_SOURCE_SHADER_COMPILER:
		return "shader-compiler"
	case gl.DEBUG_SOURCE_THIRD_PARTY:
		return "third-party"
	case gl.DEBUG_SOURCE_APPLICATION:
		return "application"
	case gl.DEBUG_SOURCE_OTHER:
		return "other"
	}
	return fmt.Sprintf("0x%04x", v)
}

func debugType(v uint32) string {
	switch v {
	case gl.DEBUG_TYPE_ERROR:
		return "error"
	case gl.DEBUG_TYPE_DEPRECATED_BEHAVIOR:
		return "deprecated"
	case gl.DEBUG_TYPE_UNDEFINED_BEHAVIOR:
		return "undefined-behavior"
	case gl.DEBUG_TYPE_PORTABILITY:
		return "portability"
	case gl.DEBUG_TYPE_PERFORMANCE:
		return "performance"
	case gl.DEBUG_TYPE_MARKER:
		return "marker"
	case gl.DEBUG_TYPE_OTHER:
		return "other"
	}
	return fmt.Sprintf("0x%04x", v)
}

func debugSeverity(v uint32) string {
	switch v {
	case gl.DEBUG_SEVERITY_HIGH:
		return "high"
	case gl.DEBUG_SEVERITY_MEDIUM:
		return "medium"
	case gl.DEBUG_SEVERITY_LOW:
		return "low"
	case gl.DEBUG_SEVERITY_NOTIFICATION:
		return "notification"
	}
	return fmt.Sprintf("0x%04x", v)
}
