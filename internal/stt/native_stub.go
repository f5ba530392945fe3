//go:build !whisper

package stt

import "errors"

// ErrNativeUnavailable means the binary was built without -tags whisper.
var ErrNativeUnavailable = errors.New("stt: whisper-native requires building with -tags whisper")

func newNative(Options) (Transcriber, error) {
	return nil, ErrNativeUnavailable
}
