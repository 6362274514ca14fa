// Package logger provides structured logging for kwikdl on top of zerolog.
//
// Features:
//   - Multiple log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Component-based filtering
//   - Text, JSON and color output
//   - Configuration from KWIKDL_LOG_* environment variables
//
// Usage:
//
//	log := logger.WithComponent(logger.ComponentPipeline)
//	log.Info("stage finished", map[string]interface{}{
//		"stage": "initial",
//		"link":  "https://kwik.si/f/abc",
//	})
//
//	cfg, err := logger.EnvironmentConfig().ToLoggerConfig()
//	if err == nil {
//		logger.SetGlobalLogger(logger.New(cfg))
//	}
//
// Components:
//   - ComponentApp: CLI and process logs
//   - ComponentPipeline: resolution stages and retries
//   - ComponentExtract: pattern matching
//   - ComponentCipher: decoding and script evaluation
//   - ComponentClient: HTTP fetches
//   - ComponentServer: HTTP API
//   - ComponentDownloader: media download
package logger
