package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// minimalEncoder is a calm, compact console encoder:
//
//	13:04:35  dispatcher.job  Run completed  run_id=r_8f2 duration_ms=812
//
// Level is only rendered for WARN/ERROR+ so the happy path stays quiet.
type minimalEncoder struct {
	zapcore.Encoder
	buf *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return &minimalEncoder{Encoder: base, buf: buffer.NewPool().Get()}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone(), buf: buffer.NewPool().Get()}
}

const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorTime   = "\x1b[38;5;107m" // mid green
	colorName   = "\x1b[38;5;208m" // warm orange
	colorSymbol = "\x1b[38;5;108m" // bright green
	colorValue  = "\x1b[38;5;109m" // blue-green
	colorWarn   = "\x1b[1m\x1b[48;5;58m\x1b[38;5;179m"
	colorError  = "\x1b[1m\x1b[48;5;52m\x1b[38;5;167m"
)

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := buffer.NewPool().Get()

	line.AppendString(colorTime)
	line.AppendString(ent.Time.Format("15:04:05"))
	line.AppendString(colorReset)

	if ent.Level != zapcore.InfoLevel {
		line.AppendString("  ")
		line.AppendString(levelBadge(ent.Level))
	}

	if ent.LoggerName != "" {
		line.AppendString("  ")
		line.AppendString(colorName)
		line.AppendString(ent.LoggerName)
		line.AppendString(colorReset)
	}

	line.AppendString("  ")
	line.AppendString(colorizeSymbols(ent.Message))

	if kv := renderFields(fields); kv != "" {
		line.AppendString("  ")
		line.AppendString(kv)
	}

	line.AppendString("\n")
	return line, nil
}

func levelBadge(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorWarn + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorError + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorError + level.CapitalString() + colorReset
	default:
		return ""
	}
}

func colorizeSymbols(msg string) string {
	for _, s := range []string{SymbolQueue, SymbolQueueOpen, SymbolQueueClose, SymbolDB} {
		if strings.Contains(msg, s) {
			msg = strings.ReplaceAll(msg, s, colorSymbol+s+colorReset)
		}
	}
	return msg
}

func renderFields(fields []zapcore.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Key+"="+colorValue+fieldValue(f)+colorReset)
	}
	return strings.Join(parts, " ")
}

func fieldValue(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", f.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%v", f.Integer != 0)
	default:
		if f.Interface != nil {
			return fmt.Sprintf("%v", f.Interface)
		}
		return ""
	}
}
