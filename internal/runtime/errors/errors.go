package errors

import sterrors "errors"

var (
	ErrConfigRequired    = sterrors.New("retailstream: config is required")
	ErrLoggerRequired    = sterrors.New("retailstream: logger is required")
	ErrTransportRequired = sterrors.New("retailstream: transport is required")
	ErrGeneratorRequired = sterrors.New("retailstream: content generator is required")
	ErrPublisherRequired = sterrors.New("retailstream: publisher is required")
	ErrCodecRequired     = sterrors.New("retailstream: codec is required")
	ErrAlreadyStreaming  = sterrors.New("retailstream: streamer is already running")
	ErrSessionFinished   = sterrors.New("retailstream: streaming session already finished")
	ErrUnknownCodec      = sterrors.New("retailstream: unknown codec")
)
