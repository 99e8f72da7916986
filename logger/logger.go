// Package logger adapts zerolog to the core.Logger interface, following
// the teacher's pkg/logger/zerolog split between interface and
// implementation so the rest of the module never imports zerolog
// directly.
package logger

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/raykavin/perpbot/core"
)

// Zerolog implements core.Logger over github.com/rs/zerolog.
type Zerolog struct {
	log zerolog.Logger
}

// New builds a console-writer logger at the given level ("debug",
// "info", "warn", "error"). jsonFormat switches to structured JSON
// output, appropriate for production deployments behind log shippers.
func New(level string, jsonFormat bool) (*Zerolog, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)

	var l zerolog.Logger
	if jsonFormat {
		l = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
		l = zerolog.New(cw).With().Timestamp().Logger()
	}
	return &Zerolog{log: l}, nil
}

func (z *Zerolog) WithField(key string, value any) core.Logger {
	return &Zerolog{log: z.log.With().Interface(key, value).Logger()}
}

func (z *Zerolog) WithFields(fields map[string]any) core.Logger {
	ctx := z.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Zerolog{log: ctx.Logger()}
}

func (z *Zerolog) WithError(err error) core.Logger {
	return &Zerolog{log: z.log.With().Err(err).Logger()}
}

func (z *Zerolog) Debug(args ...any) { z.log.Debug().Msg(sprint(args...)) }
func (z *Zerolog) Info(args ...any)  { z.log.Info().Msg(sprint(args...)) }
func (z *Zerolog) Warn(args ...any)  { z.log.Warn().Msg(sprint(args...)) }
func (z *Zerolog) Error(args ...any) { z.log.Error().Msg(sprint(args...)) }
func (z *Zerolog) Fatal(args ...any) { z.log.Fatal().Msg(sprint(args...)) }

func (z *Zerolog) Debugf(format string, args ...any) { z.log.Debug().Msgf(format, args...) }
func (z *Zerolog) Infof(format string, args ...any)  { z.log.Info().Msgf(format, args...) }
func (z *Zerolog) Warnf(format string, args ...any)  { z.log.Warn().Msgf(format, args...) }
func (z *Zerolog) Errorf(format string, args ...any) { z.log.Error().Msgf(format, args...) }
func (z *Zerolog) Fatalf(format string, args ...any) { z.log.Fatal().Msgf(format, args...) }

func sprint(args ...any) string {
	if len(args) == 1 {
		if s, ok := args[0].(string); ok {
			return s
		}
	}
	return fmt.Sprint(args...)
}
