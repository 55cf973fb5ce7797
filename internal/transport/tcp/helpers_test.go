package tcp

import "github.com/rs/zerolog"

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
